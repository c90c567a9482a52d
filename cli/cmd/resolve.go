package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/cli/config"
	"github.com/pithecene-io/svgswap/runtime"
)

// loadConfig loads --config, or svgswap.yaml in root when present.
// A nil config means no file was found. Errors exit with the
// configuration exit code.
func loadConfig(c *cli.Context, root string) (*config.Config, error) {
	path := config.Find(c.String("config"), root)
	if path == "" {
		return nil, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	return cfg, nil
}

// resolveRoot returns the absolute working directory from --dir.
func resolveRoot(c *cli.Context) (string, error) {
	dir := c.String("dir")
	if dir == "" {
		dir = "."
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", cli.Exit(fmt.Sprintf("invalid --dir: %v", err), runtime.ExitCodeConfig)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", cli.Exit(fmt.Sprintf("--dir %q is not a directory", dir), runtime.ExitCodeConfig)
	}
	return root, nil
}

// configVal reads a field from a possibly nil config.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	if cfg == nil {
		var zero T
		return zero
	}
	return get(cfg)
}

// resolveString applies precedence: explicit flag, then config, then
// the flag default.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

func resolveInt64(c *cli.Context, name string, cfgVal int64) int64 {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int64(name)
	}
	return cfgVal
}

// resolveBool lets a config true stand unless the flag is explicitly set.
func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

// resolveBoolPtr is resolveBool for tri-state config values.
func resolveBoolPtr(c *cli.Context, name string, cfgVal *bool) bool {
	if c.IsSet(name) || cfgVal == nil {
		return c.Bool(name)
	}
	return *cfgVal
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

func resolveStringSlice(c *cli.Context, name string, cfgVal []string) []string {
	if c.IsSet(name) || len(cfgVal) == 0 {
		return c.StringSlice(name)
	}
	return cfgVal
}
