package cmd

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/cli/config"
	"github.com/pithecene-io/svgswap/journal"
	"github.com/pithecene-io/svgswap/runtime"
)

// --- Config precedence ---

// newTestCLIContext builds a minimal *cli.Context with the given flags set.
// flagValues maps flag names to their string values. All listed flags are
// registered and marked as explicitly set (c.IsSet returns true).
// defaultFlags maps flag names to default values (not explicitly set).
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}
	// Only set the flagValues (not defaults) so c.IsSet works
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		set      map[string]string
		defaults map[string]string
		cfgVal   string
		want     string
	}{
		{"cli wins", map[string]string{"policy": "embedded_raster"}, nil, "min_size", "embedded_raster"},
		{"config fallback", nil, map[string]string{"policy": "min_size"}, "embedded_raster", "embedded_raster"},
		{"flag default", nil, map[string]string{"policy": "min_size"}, "", "min_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCLIContext(t, tt.set, tt.defaults)
			if got := resolveString(c, "policy", tt.cfgVal); got != tt.want {
				t.Errorf("resolveString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigVal(t *testing.T) {
	get := func(c *config.Config) string { return c.OnError }
	if got := configVal(nil, get); got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
	if got := configVal(&config.Config{OnError: "continue"}, get); got != "continue" {
		t.Errorf("expected continue, got %q", got)
	}
}

func TestResolveInt64_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.Int64Flag{Name: "min-size", Value: 10240}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int64("min-size", 10240, "")
	c := cli.NewContext(app, fs, nil)

	if got := resolveInt64(c, "min-size", 2048); got != 2048 {
		t.Errorf("expected config fallback 2048, got %d", got)
	}
	_ = fs.Set("min-size", "4096")
	if got := resolveInt64(c, "min-size", 2048); got != 4096 {
		t.Errorf("expected CLI 4096 to win, got %d", got)
	}
}

func TestResolveBool(t *testing.T) {
	newCtx := func(set string) *cli.Context {
		app := cli.NewApp()
		app.Flags = []cli.Flag{&cli.BoolFlag{Name: "no-sandbox"}}
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.Bool("no-sandbox", false, "")
		if set != "" {
			_ = fs.Set("no-sandbox", set)
		}
		return cli.NewContext(app, fs, nil)
	}

	if !resolveBool(newCtx(""), "no-sandbox", true) {
		t.Error("config true should apply when the flag is unset")
	}
	if resolveBool(newCtx("false"), "no-sandbox", true) {
		t.Error("explicit --no-sandbox=false should override config")
	}
	if !resolveBool(newCtx("true"), "no-sandbox", false) {
		t.Error("explicit CLI true should win")
	}
}

func TestResolveBoolPtr(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "headless"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("headless", false, "")
	c := cli.NewContext(app, fs, nil)

	yes := true
	if resolveBoolPtr(c, "headless", nil) {
		t.Error("nil config should fall back to the flag default")
	}
	if !resolveBoolPtr(c, "headless", &yes) {
		t.Error("config true should apply when the flag is unset")
	}
}

func TestResolveDuration(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "step-timeout", Value: 5 * time.Minute}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("step-timeout", 5*time.Minute, "")
	c := cli.NewContext(app, fs, nil)

	if got := resolveDuration(c, "step-timeout", 90*time.Second); got != 90*time.Second {
		t.Errorf("expected config fallback 90s, got %v", got)
	}
	if got := resolveDuration(c, "step-timeout", 0); got != 5*time.Minute {
		t.Errorf("expected flag default 5m, got %v", got)
	}
	_ = fs.Set("step-timeout", "30s")
	if got := resolveDuration(c, "step-timeout", 90*time.Second); got != 30*time.Second {
		t.Errorf("expected CLI 30s to win, got %v", got)
	}
}

// --- Ledger and journal resolution ---

func TestLedgerChoice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		choice  ledgerChoice
		wantErr string
	}{
		{name: "disabled", choice: ledgerChoice{}},
		{name: "fs", choice: ledgerChoice{backend: "fs", path: "/tmp/ledger"}},
		{name: "s3", choice: ledgerChoice{backend: "s3", path: "bucket/prefix"}},
		{name: "fs missing path", choice: ledgerChoice{backend: "fs"}, wantErr: "--ledger-path is required when --ledger-backend=fs"},
		{name: "unknown", choice: ledgerChoice{backend: "gcs", path: "x"}, wantErr: `unknown ledger backend "gcs"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.choice.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveLedgerChoice_ProjectDefaultsToRootName(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{
		"ledger-backend": "", "ledger-path": "", "ledger-region": "",
		"ledger-endpoint": "", "ledger-dataset": "", "ledger-project": "",
	})
	cfg := &config.Config{Ledger: config.LedgerConfig{Backend: "fs", Path: "/var/ledger"}}

	got := resolveLedgerChoice(c, cfg, "/srv/www/site")
	want := ledgerChoice{backend: "fs", path: "/var/ledger", project: "site"}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(ledgerChoice{})); diff != "" {
		t.Errorf("ledger choice mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildLedger_DisabledIsNil(t *testing.T) {
	l, err := buildLedger(t.Context(), ledgerChoice{}, "run-001", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l != nil {
		t.Error("expected nil ledger when no backend is configured")
	}
}

func TestResolveJournal(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.StringFlag{Name: "journal-path"}, &cli.BoolFlag{Name: "no-journal"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("journal-path", "", "")
	fs.Bool("no-journal", false, "")
	c := cli.NewContext(app, fs, nil)

	path, on := resolveJournal(c, nil, "/srv/site")
	if path != filepath.Join("/srv/site", journal.DefaultFileName) || !on {
		t.Errorf("default journal = %q, %t", path, on)
	}

	off := false
	cfg := &config.Config{Journal: config.JournalConfig{Enabled: &off, Path: "/tmp/j"}}
	path, on = resolveJournal(c, cfg, "/srv/site")
	if path != "/tmp/j" || on {
		t.Errorf("config journal = %q, %t", path, on)
	}

	_ = fs.Set("no-journal", "false")
	if _, on = resolveJournal(c, cfg, "/srv/site"); !on {
		t.Error("explicit --no-journal=false should re-enable the journal")
	}
}

// --- parseAdapterConfigWithPrecedence ---

// newAdapterTestContext builds a CLI context with adapter-related flags.
func newAdapterTestContext(t *testing.T, flags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "adapter-url"},
		&cli.StringFlag{Name: "adapter-channel"},
		&cli.DurationFlag{Name: "adapter-timeout"},
		&cli.IntFlag{Name: "adapter-retries", Value: 3},
		&cli.StringSliceFlag{Name: "adapter-header"},
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("adapter-url", "", "")
	fs.String("adapter-channel", "", "")
	fs.Duration("adapter-timeout", 0, "")
	fs.Int("adapter-retries", 3, "")
	for name, val := range flags {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}
	return cli.NewContext(app, fs, nil)
}

func TestParseAdapterConfig_WebhookValid(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url": "https://hooks.example.com/svgswap",
	})

	ac, err := parseAdapterConfigWithPrecedence(c, nil, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &adapterChoice{
		adapterType: "webhook",
		url:         "https://hooks.example.com/svgswap",
		headers:     map[string]string{},
		retries:     3,
	}
	if diff := cmp.Diff(want, ac, cmp.AllowUnexported(adapterChoice{})); diff != "" {
		t.Errorf("adapter choice mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAdapterConfig_MissingURL(t *testing.T) {
	for _, typ := range []string{"webhook", "redis"} {
		t.Run(typ, func(t *testing.T) {
			c := newAdapterTestContext(t, nil)
			_, err := parseAdapterConfigWithPrecedence(c, nil, typ)
			if err == nil {
				t.Fatal("expected error for missing URL")
			}
			if !strings.Contains(err.Error(), "--adapter-url is required when --adapter="+typ) {
				t.Errorf("error should mention the URL requirement, got: %v", err)
			}
		})
	}
}

func TestParseAdapterConfig_UnknownType(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{"adapter-url": "https://example.com"})

	_, err := parseAdapterConfigWithPrecedence(c, nil, "kafka")
	if err == nil {
		t.Fatal("expected error for unknown adapter type")
	}
	if !strings.Contains(err.Error(), "unknown adapter type") || !strings.Contains(err.Error(), "kafka") {
		t.Errorf("error should name the unknown type, got: %v", err)
	}
}

func TestParseAdapterConfig_ConfigValues(t *testing.T) {
	c := newAdapterTestContext(t, nil)
	retries := 5
	cfg := &config.Config{
		Adapter: config.AdapterConfig{
			URL:     "redis://localhost:6379/0",
			Channel: "deploys",
			Timeout: config.Duration{Duration: 2 * time.Second},
			Retries: &retries,
			Headers: map[string]string{"X-Source": "svgswap"},
		},
	}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "redis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &adapterChoice{
		adapterType: "redis",
		url:         "redis://localhost:6379/0",
		channel:     "deploys",
		timeout:     2 * time.Second,
		retries:     5,
		headers:     map[string]string{"X-Source": "svgswap"},
	}
	if diff := cmp.Diff(want, ac, cmp.AllowUnexported(adapterChoice{})); diff != "" {
		t.Errorf("adapter choice mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAdapterConfig_CLIOverridesConfig(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url":     "https://cli.example.com",
		"adapter-retries": "0",
	})
	retries := 5
	cfg := &config.Config{Adapter: config.AdapterConfig{URL: "https://config.example.com", Retries: &retries}}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "https://cli.example.com" {
		t.Errorf("CLI should override config URL, got %q", ac.url)
	}
	if ac.retries != 0 {
		t.Errorf("explicit --adapter-retries=0 should override config, got %d", ac.retries)
	}
}

func TestParseAdapterConfig_Headers(t *testing.T) {
	cfg := &config.Config{Adapter: config.AdapterConfig{
		Headers: map[string]string{"X-Api-Key": "from-config", "X-Source": "svgswap"},
	}}

	tests := []struct {
		name    string
		headers []string
		want    map[string]string
		wantErr string
	}{
		{
			name:    "cli header wins per key",
			headers: []string{"X-Api-Key=from-cli", "X-Trace=1"},
			want:    map[string]string{"X-Api-Key": "from-cli", "X-Source": "svgswap", "X-Trace": "1"},
		},
		{
			name:    "malformed",
			headers: []string{"no-equals-sign"},
			wantErr: "invalid --adapter-header",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := cli.NewApp()
			app.Flags = []cli.Flag{
				&cli.StringFlag{Name: "adapter-url"},
				&cli.StringSliceFlag{Name: "adapter-header"},
				&cli.DurationFlag{Name: "adapter-timeout"},
				&cli.IntFlag{Name: "adapter-retries", Value: 3},
				&cli.StringFlag{Name: "adapter-channel"},
			}
			var got *adapterChoice
			var parseErr error
			app.Action = func(c *cli.Context) error {
				got, parseErr = parseAdapterConfigWithPrecedence(c, cfg, "webhook")
				return nil
			}
			args := []string{"test", "--adapter-url", "https://example.com"}
			for _, h := range tt.headers {
				args = append(args, "--adapter-header", h)
			}
			if err := app.Run(args); err != nil {
				t.Fatal(err)
			}

			if tt.wantErr != "" {
				if parseErr == nil || !strings.Contains(parseErr.Error(), tt.wantErr) || !strings.Contains(parseErr.Error(), "key=value") {
					t.Fatalf("error = %v, want %q with key=value hint", parseErr, tt.wantErr)
				}
				return
			}
			if parseErr != nil {
				t.Fatalf("unexpected error: %v", parseErr)
			}
			if diff := cmp.Diff(tt.want, got.headers); diff != "" {
				t.Errorf("headers mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildAdapter_RedisRejectsHeaders(t *testing.T) {
	_, err := buildAdapter(&adapterChoice{
		adapterType: "redis",
		url:         "redis://localhost:6379",
		headers:     map[string]string{"X": "1"},
	})
	if err == nil || !strings.Contains(err.Error(), "not supported for redis") {
		t.Errorf("error = %v", err)
	}
}

// --- RunAction ---

// newTestApp creates a cli.App with every command wired up and
// ExitErrHandler suppressed so errors are returned instead of calling os.Exit.
func newTestApp(out *bytes.Buffer) *cli.App {
	app := cli.NewApp()
	app.Flags = RunFlags()
	app.Action = RunAction
	app.Commands = []*cli.Command{
		RunCommand(),
		RewriteCommand(),
		ResumeCommand(),
		SummaryCommand(),
		LedgerCommand(),
	}
	app.Writer = out
	app.ErrWriter = out
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func exitCodeOf(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}

func writeTestFile(t *testing.T, root, rel, data string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunAction_NoCandidates(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "icon.svg", `<svg width="16"></svg>`)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"svgswap",
		"--dir", root,
		"--run-id", "run-001",
		"--log-level", "error",
		"--report", reportPath,
	})
	if code := exitCodeOf(t, err); code != runtime.ExitCodeSuccess {
		t.Fatalf("exit code = %d (%v), want 0", code, err)
	}

	report, err := runtime.ReadBatchReport(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	if report.RunID != "run-001" || report.Totals.Discovered != 1 || report.Totals.Candidates != 0 {
		t.Errorf("report = %+v totals %+v", report, report.Totals)
	}
	if !strings.Contains(out.String(), "status=success") {
		t.Errorf("summary output missing status, got:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(root, journal.DefaultFileName)); !os.IsNotExist(err) {
		t.Error("empty journal should be compacted away")
	}
}

func TestRunAction_ConfigErrorsExitTwo(t *testing.T) {
	root := t.TempDir()
	badConfig := writeTestFile(t, root, "bad.yaml", "selection:\n  policy: largest\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing dir", []string{"--dir", filepath.Join(root, "nope")}, "is not a directory"},
		{"bad on-error", []string{"--on-error", "retry"}, "retry"},
		{"bad policy", []string{"--policy", "largest"}, "invalid selection policy"},
		{"archive without ledger", []string{"--archive-originals"}, "--archive-originals requires --ledger-backend"},
		{"ledger without path", []string{"--ledger-backend", "fs"}, "--ledger-path is required"},
		{"adapter without url", []string{"--adapter", "webhook"}, "--adapter-url is required"},
		{"invalid config file", []string{"--config", badConfig}, "unknown policy"},
		{"missing config file", []string{"--config", filepath.Join(root, "missing.yaml")}, "config file not found"},
		{"positional argument", []string{"extra"}, "unexpected argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"svgswap", "--dir", root, "--log-level", "error"}, tt.args...)
			err := newTestApp(&bytes.Buffer{}).Run(args)
			if code := exitCodeOf(t, err); code != runtime.ExitCodeConfig {
				t.Fatalf("exit code = %d (%v), want %d", code, err, runtime.ExitCodeConfig)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want containing %q", err.Error(), tt.want)
			}
		})
	}
}

func TestRunAction_ConfigFileDiscoveredInDir(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, config.DefaultFileName, "on_error: explode\n")

	err := newTestApp(&bytes.Buffer{}).Run([]string{"svgswap", "run", "--dir", root})
	if code := exitCodeOf(t, err); code != runtime.ExitCodeConfig {
		t.Fatalf("exit code = %d (%v), want %d", code, err, runtime.ExitCodeConfig)
	}
}
