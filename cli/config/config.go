package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/svgswap/convert"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "svgswap.yaml"

// Config represents an svgswap.yaml configuration file.
// All values are optional and act as defaults for svgswap flags.
// CLI flags always override config values.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	OnError   string          `yaml:"on_error"`
	Report    string          `yaml:"report"`
	Selection SelectionConfig `yaml:"selection"`
	Browser   BrowserConfig   `yaml:"browser"`
	Tools     ToolsConfig     `yaml:"tools"`
	Rewrite   RewriteConfig   `yaml:"rewrite"`
	Journal   JournalConfig   `yaml:"journal"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Adapter   AdapterConfig   `yaml:"adapter"`
}

// SelectionConfig holds candidate selection defaults.
type SelectionConfig struct {
	Policy  string `yaml:"policy"`
	MinSize int64  `yaml:"min_size"`
}

// BrowserConfig holds browser launch defaults.
type BrowserConfig struct {
	Headless  *bool    `yaml:"headless,omitempty"`
	ExecPath  string   `yaml:"exec_path"`
	Proxy     string   `yaml:"proxy"`
	NoSandbox bool     `yaml:"no_sandbox"`
	Timeout   Duration `yaml:"timeout"`
}

// ToolsConfig overrides the built-in remote tools field by field.
type ToolsConfig struct {
	Vector   ToolOverride `yaml:"vector"`
	Compress ToolOverride `yaml:"compress"`
}

// ToolOverride replaces the non-empty fields of a built-in tool.
type ToolOverride struct {
	URL           string `yaml:"url"`
	UploadLabel   string `yaml:"upload_label"`
	SettingsLabel string `yaml:"settings_label"`
	SliderLabel   string `yaml:"slider_label"`
	WidthLabel    string `yaml:"width_label"`
	SubmitLabel   string `yaml:"submit_label"`
	DownloadLabel string `yaml:"download_label"`
	UseSlider     *bool  `yaml:"use_slider,omitempty"`
}

// Apply returns base with the override's set fields replaced.
func (o ToolOverride) Apply(base convert.ToolConfig) convert.ToolConfig {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&base.URL, o.URL)
	set(&base.UploadLabel, o.UploadLabel)
	set(&base.SettingsLabel, o.SettingsLabel)
	set(&base.SliderLabel, o.SliderLabel)
	set(&base.WidthLabel, o.WidthLabel)
	set(&base.SubmitLabel, o.SubmitLabel)
	set(&base.DownloadLabel, o.DownloadLabel)
	if o.UseSlider != nil {
		base.UseSlider = *o.UseSlider
	}
	return base
}

// RewriteConfig holds reference rewrite defaults.
type RewriteConfig struct {
	Extensions  []string `yaml:"extensions"`
	Ignore      []string `yaml:"ignore"`
	ExcludeDirs []string `yaml:"exclude_dirs"`
	DryRun      bool     `yaml:"dry_run"`
	Parallel    int      `yaml:"parallel"`
}

// JournalConfig holds journal defaults. The journal is on unless
// Enabled is explicitly false.
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path"`
}

// LedgerConfig holds ledger storage defaults. An empty backend disables
// the ledger.
type LedgerConfig struct {
	Dataset          string `yaml:"dataset"`
	Project          string `yaml:"project"`
	Backend          string `yaml:"backend"`
	Path             string `yaml:"path"`
	Region           string `yaml:"region"`
	Endpoint         string `yaml:"endpoint"`
	S3PathStyle      bool   `yaml:"s3_path_style"`
	ArchiveOriginals bool   `yaml:"archive_originals"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Validate checks enumerated values. Unset values are valid; defaults
// are applied by the command layer.
func (c *Config) Validate() error {
	var errs []error
	switch c.Selection.Policy {
	case "", "min_size", "embedded_raster":
	default:
		errs = append(errs, fmt.Errorf("selection.policy: unknown policy %q", c.Selection.Policy))
	}
	if c.Selection.MinSize < 0 {
		errs = append(errs, errors.New("selection.min_size must not be negative"))
	}
	switch c.OnError {
	case "", "abort", "continue":
	default:
		errs = append(errs, fmt.Errorf("on_error: expected abort or continue, got %q", c.OnError))
	}
	switch c.Ledger.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("ledger.backend: expected fs or s3, got %q", c.Ledger.Backend))
	}
	if c.Ledger.ArchiveOriginals && c.Ledger.Backend == "" {
		errs = append(errs, errors.New("ledger.archive_originals requires ledger.backend"))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("adapter.type: unknown adapter type %q", c.Adapter.Type))
	}
	if c.Rewrite.Parallel < 0 {
		errs = append(errs, errors.New("rewrite.parallel must not be negative"))
	}
	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
