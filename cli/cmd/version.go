package cmd

import (
	goruntime "runtime"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/cli/render"
	"github.com/pithecene-io/svgswap/convert"
	"github.com/pithecene-io/svgswap/runtime"
	"github.com/pithecene-io/svgswap/types"
)

// buildInfo is what `svgswap version` prints. The tool URLs are the
// built-in defaults; config and flags may override them per run.
type buildInfo struct {
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	GoVersion    string `json:"go_version"`
	Platform     string `json:"platform"`
	VectorTool   string `json:"vector_tool"`
	CompressTool string `json:"compress_tool"`
}

func newBuildInfo(commit string) buildInfo {
	return buildInfo{
		Version:      types.Version,
		Commit:       commit,
		GoVersion:    goruntime.Version(),
		Platform:     goruntime.GOOS + "/" + goruntime.GOARCH,
		VectorTool:   convert.DefaultVectorTool().URL,
		CompressTool: convert.DefaultCompressTool().URL,
	}
}

// VersionCommand prints build information. It never launches a browser.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version and build information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			if c.Bool("tui") {
				return cli.Exit("--tui is not supported for version command", runtime.ExitCodeConfig)
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), runtime.ExitCodeConfig)
			}
			return r.Render(newBuildInfo(commit))
		},
	}
}
