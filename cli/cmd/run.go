package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/adapter"
	"github.com/pithecene-io/svgswap/cli/config"
	"github.com/pithecene-io/svgswap/cli/tui"
	"github.com/pithecene-io/svgswap/convert"
	"github.com/pithecene-io/svgswap/discover"
	"github.com/pithecene-io/svgswap/iox"
	"github.com/pithecene-io/svgswap/journal"
	"github.com/pithecene-io/svgswap/metrics"
	"github.com/pithecene-io/svgswap/runtime"
	"github.com/pithecene-io/svgswap/selector"
	"github.com/pithecene-io/svgswap/types"
)

// commonFlags are shared by every command that touches the working tree.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"C"},
			Usage:   "Working directory to migrate",
			Value:   ".",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to svgswap.yaml (default: <dir>/svgswap.yaml when present)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run ID (default: generated UUID)",
		},
	}
}

// rewriteFlags narrow the reference scan set.
func rewriteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "extensions",
			Usage: "Text file extensions scanned for references (default: .js .jsx .ts .tsx .html .css .scss .md .json)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-dir",
			Usage: "Directory names skipped during discovery and rewrite (default: node_modules dist build)",
		},
		&cli.StringSliceFlag{
			Name:  "ignore",
			Usage: "Additional glob patterns to skip (relative slash paths or base names)",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Concurrent file reads during inspection and rewrite",
			Value: discover.DefaultParallel,
		},
	}
}

// ledgerFlags select the Lode ledger backend.
func ledgerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "ledger-backend",
			Usage: "Ledger backend: fs or s3 (default: disabled)",
		},
		&cli.StringFlag{
			Name:  "ledger-path",
			Usage: "Ledger root directory (fs) or bucket/prefix (s3)",
		},
		&cli.StringFlag{
			Name:  "ledger-region",
			Usage: "AWS region for the s3 backend",
		},
		&cli.StringFlag{
			Name:  "ledger-endpoint",
			Usage: "Custom S3 endpoint (R2, MinIO)",
		},
		&cli.BoolFlag{
			Name:  "ledger-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
		&cli.StringFlag{
			Name:  "ledger-dataset",
			Usage: "Ledger dataset ID",
		},
		&cli.StringFlag{
			Name:  "ledger-project",
			Usage: "Ledger project partition (default: base name of --dir)",
		},
	}
}

// RunFlags returns the flags of the migration run. The root command
// carries them too so that a bare `svgswap` runs the migration.
func RunFlags() []cli.Flag {
	flags := commonFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:  "on-error",
			Usage: "Candidate failure policy: abort or continue",
			Value: string(runtime.OnErrorAbort),
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON batch report to this path (- for stderr)",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the result summary",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Convert and gate, preview rewrites, keep originals and remove artifacts",
		},
		// Selection
		&cli.StringFlag{
			Name:  "policy",
			Usage: "Selection policy: min_size or embedded_raster",
			Value: string(selector.PolicyMinSize),
		},
		&cli.Int64Flag{
			Name:  "min-size",
			Usage: "Minimum SVG size in bytes for the min_size policy",
			Value: selector.DefaultMinSize,
		},
		// Browser
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the browser without a window",
		},
		&cli.StringFlag{
			Name:  "chrome-path",
			Usage: "Chrome executable (default: autodetect)",
		},
		&cli.StringFlag{
			Name:  "browser-proxy",
			Usage: "Proxy server passed to the browser",
		},
		&cli.BoolFlag{
			Name:  "no-sandbox",
			Usage: "Disable the Chrome sandbox (containers, CI)",
		},
		&cli.DurationFlag{
			Name:  "step-timeout",
			Usage: "Timeout for each remote tool interaction",
			Value: convert.DefaultStepTimeout,
		},
		// Tools
		&cli.StringFlag{
			Name:  "vector-url",
			Usage: "Override the vector to raster tool URL",
		},
		&cli.StringFlag{
			Name:  "compress-url",
			Usage: "Override the compression tool URL",
		},
		// Journal
		&cli.StringFlag{
			Name:  "journal-path",
			Usage: "Journal file (default: <dir>/" + journal.DefaultFileName + ")",
		},
		&cli.BoolFlag{
			Name:  "no-journal",
			Usage: "Disable the migration journal",
		},
		&cli.BoolFlag{
			Name:  "archive-originals",
			Usage: "Copy each original into the ledger before deleting it",
		},
		// Adapter
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or redis URL",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis channel",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt adapter timeout (default: adapter specific)",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Adapter retry attempts",
			Value: 3,
		},
	)
	flags = append(flags, rewriteFlags()...)
	return append(flags, ledgerFlags()...)
}

// RunCommand returns the run command.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Migrate large SVG files in the working directory to AVIF",
		Flags:  RunFlags(),
		Action: RunAction,
	}
}

// RunAction executes a migration batch and exits with its status code.
func RunAction(c *cli.Context) error {
	if c.NArg() > 0 {
		return cli.Exit(fmt.Sprintf("unexpected argument %q (use --dir to choose the directory)", c.Args().First()), runtime.ExitCodeConfig)
	}
	root, err := resolveRoot(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c, root)
	if err != nil {
		return err
	}

	startTime := time.Now()
	runID := c.String("run-id")
	if runID == "" {
		runID = uuid.NewString()
	}
	dryRun := resolveBool(c, "dry-run", configVal(cfg, func(c *config.Config) bool { return c.Rewrite.DryRun }))
	meta := &types.BatchMeta{RunID: runID, Root: root, DryRun: dryRun}

	logger := buildLogger(c, cfg, meta)
	defer logger.Sync()

	onError, err := runtime.ParseOnError(resolveString(c, "on-error", configVal(cfg, func(c *config.Config) string { return c.OnError })))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	sel, err := buildSelector(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	conv, err := buildConverter(c, cfg, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid tool config: %v", err), runtime.ExitCodeConfig)
	}
	rw := buildRewriter(c, cfg, root, dryRun, logger)

	lc := resolveLedgerChoice(c, cfg, root)
	if err := lc.validate(); err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	archive := resolveBool(c, "archive-originals", configVal(cfg, func(c *config.Config) bool { return c.Ledger.ArchiveOriginals }))
	if archive && lc.backend == "" {
		return cli.Exit("--archive-originals requires --ledger-backend", runtime.ExitCodeConfig)
	}

	var notifier adapter.Adapter
	if adapterType := resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type })); adapterType != "" {
		choice, err := parseAdapterConfigWithPrecedence(c, cfg, adapterType)
		if err != nil {
			return cli.Exit(err.Error(), runtime.ExitCodeConfig)
		}
		notifier, err = buildAdapter(choice)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid adapter config: %v", err), runtime.ExitCodeConfig)
		}
		defer iox.DiscardErr(notifier.Close)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := buildLedger(ctx, lc, runID, startTime)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open ledger: %v", err), runtime.ExitCodeConfig)
	}
	defer iox.DiscardErr(ledger.Close)

	// Dry runs never delete, so there is nothing to journal.
	journalPath, journalOn := resolveJournal(c, cfg, root)
	var j *journal.Journal
	if journalOn && !dryRun {
		j, err = journal.Open(journalPath, runID)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
	}

	collector := metrics.NewCollector(string(sel.Policy()), lc.backend, runID)
	orchestrator, err := runtime.NewBatchOrchestrator(&runtime.BatchConfig{
		Meta:             meta,
		Selector:         sel,
		Converter:        conv,
		Rewriter:         rw,
		ExcludeDirs:      resolveStringSlice(c, "exclude-dir", configVal(cfg, func(c *config.Config) []string { return c.Rewrite.ExcludeDirs })),
		Ignore:           resolveStringSlice(c, "ignore", configVal(cfg, func(c *config.Config) []string { return c.Rewrite.Ignore })),
		Parallel:         resolveInt(c, "parallel", configVal(cfg, func(c *config.Config) int { return c.Rewrite.Parallel })),
		OnError:          onError,
		Journal:          j,
		Ledger:           ledger,
		ArchiveOriginals: archive,
		Adapter:          notifier,
		Collector:        collector,
		Logger:           logger,
	})
	if err != nil {
		_ = j.Close()
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}

	result, err := orchestrator.Execute(ctx)
	closeErr := j.Close()
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	if j != nil && closeErr == nil {
		if _, err := runtime.CompactJournal(journalPath); err != nil {
			logger.Warn("journal compaction failed", map[string]any{"error": err.Error()})
		}
	}

	exitCode := runtime.ExitCode(result.Status)
	report := runtime.BuildBatchReport(result, collector.Snapshot(), exitCode)
	if path := resolveString(c, "report", configVal(cfg, func(c *config.Config) string { return c.Report })); path != "" {
		if err := runtime.WriteBatchReport(report, path); err != nil {
			logger.Error("failed to write report", map[string]any{"path": path, "error": err.Error()})
		} else if path != "-" && isStderrTTY() {
			fmt.Fprintf(c.App.ErrWriter, "report written to %s (view with: svgswap summary %s)\n", path, path)
		}
	}

	if !c.Bool("quiet") {
		printBatchResult(c.App.Writer, report)
	}
	return cli.Exit("", exitCode)
}

func printBatchResult(w io.Writer, r *runtime.BatchReport) {
	if w == nil {
		w = os.Stdout
	}
	t := r.Totals
	fmt.Fprintf(w, "\nrun_id=%s, status=%s, dry_run=%t, duration=%s\n",
		r.RunID, r.Status, r.DryRun, (time.Duration(r.DurationMs) * time.Millisecond).String())

	fmt.Fprintf(w, "\n=== Batch Result ===\n")
	fmt.Fprintf(w, "Root:          %s\n", r.Root)
	fmt.Fprintf(w, "Message:       %s\n", r.Message)
	fmt.Fprintf(w, "Discovered:    %d\n", t.Discovered)
	fmt.Fprintf(w, "Candidates:    %d\n", t.Candidates)
	fmt.Fprintf(w, "Converted:     %d\n", t.Converted)
	fmt.Fprintf(w, "Kept Original: %d\n", t.Kept)
	fmt.Fprintf(w, "Failed:        %d\n", t.Failed)
	fmt.Fprintf(w, "Bytes Saved:   %s\n", tui.FormatBytes(t.BytesSaved))

	if len(r.Candidates) == 0 {
		return
	}
	fmt.Fprintf(w, "\n=== Candidates ===\n")
	for _, cr := range r.Candidates {
		line := fmt.Sprintf("  %-13s %s (%s", cr.Status, cr.Path, tui.FormatBytes(cr.SourceBytes))
		if cr.ArtifactBytes > 0 {
			line += " -> " + tui.FormatBytes(cr.ArtifactBytes)
		}
		line += ")"
		if cr.Error != "" {
			line += ": " + cr.Error
		}
		fmt.Fprintln(w, line)
	}
}
