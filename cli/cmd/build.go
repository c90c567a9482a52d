package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"

	golode "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/adapter"
	"github.com/pithecene-io/svgswap/adapter/redis"
	"github.com/pithecene-io/svgswap/adapter/webhook"
	"github.com/pithecene-io/svgswap/cli/config"
	"github.com/pithecene-io/svgswap/convert"
	"github.com/pithecene-io/svgswap/journal"
	"github.com/pithecene-io/svgswap/lode"
	"github.com/pithecene-io/svgswap/log"
	"github.com/pithecene-io/svgswap/rewrite"
	"github.com/pithecene-io/svgswap/selector"
	"github.com/pithecene-io/svgswap/types"
)

func buildLogger(c *cli.Context, cfg *config.Config, meta *types.BatchMeta) *log.Logger {
	level := resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.LogLevel }))
	return log.NewLogger(meta, level)
}

func buildSelector(c *cli.Context, cfg *config.Config) (*selector.Selector, error) {
	return selector.New(selector.Config{
		Policy:  selector.Policy(resolveString(c, "policy", configVal(cfg, func(c *config.Config) string { return c.Selection.Policy }))),
		MinSize: resolveInt64(c, "min-size", configVal(cfg, func(c *config.Config) int64 { return c.Selection.MinSize })),
	})
}

func buildConverter(c *cli.Context, cfg *config.Config, logger *log.Logger) (*convert.ChromeConverter, error) {
	tools := configVal(cfg, func(c *config.Config) config.ToolsConfig { return c.Tools })
	vector := tools.Vector.Apply(convert.DefaultVectorTool())
	compress := tools.Compress.Apply(convert.DefaultCompressTool())
	if c.IsSet("vector-url") {
		vector.URL = c.String("vector-url")
	}
	if c.IsSet("compress-url") {
		compress.URL = c.String("compress-url")
	}

	browser := configVal(cfg, func(c *config.Config) config.BrowserConfig { return c.Browser })
	return convert.NewChromeConverter(convert.ChromeConverterConfig{
		Browser: convert.BrowserOptions{
			Headless:  resolveBoolPtr(c, "headless", browser.Headless),
			ExecPath:  resolveString(c, "chrome-path", browser.ExecPath),
			Proxy:     resolveString(c, "browser-proxy", browser.Proxy),
			NoSandbox: resolveBool(c, "no-sandbox", browser.NoSandbox),
		},
		Vector:      vector,
		Compress:    compress,
		StepTimeout: resolveDuration(c, "step-timeout", browser.Timeout.Duration),
		Logger:      logger,
	})
}

func buildRewriter(c *cli.Context, cfg *config.Config, root string, dryRun bool, logger *log.Logger) *rewrite.Rewriter {
	rc := configVal(cfg, func(c *config.Config) config.RewriteConfig { return c.Rewrite })
	return rewrite.New(rewrite.Options{
		Root:        root,
		Extensions:  resolveStringSlice(c, "extensions", rc.Extensions),
		ExcludeDirs: resolveStringSlice(c, "exclude-dir", rc.ExcludeDirs),
		Ignore:      resolveStringSlice(c, "ignore", rc.Ignore),
		DryRun:      dryRun,
		Parallel:    resolveInt(c, "parallel", rc.Parallel),
		Logger:      logger,
	})
}

// resolveJournal returns the journal path and whether journaling is on.
func resolveJournal(c *cli.Context, cfg *config.Config, root string) (string, bool) {
	jc := configVal(cfg, func(c *config.Config) config.JournalConfig { return c.Journal })
	path := resolveString(c, "journal-path", jc.Path)
	if path == "" {
		path = journal.DefaultFileName
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	enabled := jc.Enabled == nil || *jc.Enabled
	if c.IsSet("no-journal") {
		enabled = !c.Bool("no-journal")
	}
	return path, enabled
}

// ledgerChoice holds resolved ledger settings.
type ledgerChoice struct {
	backend   string
	path      string
	region    string
	endpoint  string
	pathStyle bool
	dataset   string
	project   string
}

func resolveLedgerChoice(c *cli.Context, cfg *config.Config, root string) ledgerChoice {
	lc := configVal(cfg, func(c *config.Config) config.LedgerConfig { return c.Ledger })
	choice := ledgerChoice{
		backend:   resolveString(c, "ledger-backend", lc.Backend),
		path:      resolveString(c, "ledger-path", lc.Path),
		region:    resolveString(c, "ledger-region", lc.Region),
		endpoint:  resolveString(c, "ledger-endpoint", lc.Endpoint),
		pathStyle: resolveBool(c, "ledger-s3-path-style", lc.S3PathStyle),
		dataset:   resolveString(c, "ledger-dataset", lc.Dataset),
		project:   resolveString(c, "ledger-project", lc.Project),
	}
	if choice.project == "" {
		choice.project = filepath.Base(root)
	}
	return choice
}

// validate checks the backend and its required path. An empty backend
// disables the ledger.
func (l ledgerChoice) validate() error {
	switch l.backend {
	case "":
		return nil
	case "fs", "s3":
		if l.path == "" {
			return fmt.Errorf("--ledger-path is required when --ledger-backend=%s", l.backend)
		}
		return nil
	default:
		return fmt.Errorf("unknown ledger backend %q (must be fs or s3)", l.backend)
	}
}

// factory builds the Lode store factory for the chosen backend.
func (l ledgerChoice) factory(ctx context.Context) (golode.StoreFactory, error) {
	switch l.backend {
	case "fs":
		return golode.NewFSFactory(l.path), nil
	case "s3":
		bucket, prefix := lode.ParseS3Path(l.path)
		return lode.NewS3Factory(ctx, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       l.region,
			Endpoint:     l.endpoint,
			UsePathStyle: l.pathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown ledger backend %q (must be fs or s3)", l.backend)
	}
}

// buildLedger returns nil when no backend is configured.
func buildLedger(ctx context.Context, l ledgerChoice, runID string, startTime time.Time) (*lode.Ledger, error) {
	if l.backend == "" {
		return nil, nil
	}
	factory, err := l.factory(ctx)
	if err != nil {
		return nil, err
	}
	return lode.New(lode.Config{
		Dataset: l.dataset,
		Project: l.project,
		Day:     lode.DeriveDay(startTime),
		RunID:   runID,
	}, factory)
}

// adapterChoice holds resolved adapter settings.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// parseAdapterConfigWithPrecedence resolves adapter settings for the
// given type. Config headers are merged first so --adapter-header wins
// per key.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config, adapterType string) (*adapterChoice, error) {
	ac := configVal(cfg, func(c *config.Config) config.AdapterConfig { return c.Adapter })

	choice := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", ac.URL),
		channel:     resolveString(c, "adapter-channel", ac.Channel),
		timeout:     resolveDuration(c, "adapter-timeout", ac.Timeout.Duration),
		retries:     c.Int("adapter-retries"),
		headers:     map[string]string{},
	}
	if !c.IsSet("adapter-retries") && ac.Retries != nil {
		choice.retries = *ac.Retries
	}

	maps.Copy(choice.headers, ac.Headers)
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q: expected key=value", h)
		}
		choice.headers[k] = v
	}

	switch adapterType {
	case "webhook", "redis":
		if choice.url == "" {
			return nil, fmt.Errorf("--adapter-url is required when --adapter=%s", adapterType)
		}
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", adapterType)
	}
	return choice, nil
}

func buildAdapter(choice *adapterChoice) (adapter.Adapter, error) {
	switch choice.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "redis":
		if len(choice.headers) > 0 {
			return nil, errors.New("--adapter-header is not supported for redis adapter")
		}
		return redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q (must be webhook or redis)", choice.adapterType)
	}
}
