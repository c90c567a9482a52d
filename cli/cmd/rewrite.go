package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/cli/render"
	"github.com/pithecene-io/svgswap/rewrite"
	"github.com/pithecene-io/svgswap/runtime"
	"github.com/pithecene-io/svgswap/types"
)

// RewriteCommand returns the standalone rewrite command. It replaces
// one filename with another across the scan set without converting.
func RewriteCommand() *cli.Command {
	flags := commonFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:     "from",
			Usage:    "Original file name (e.g. logo.svg)",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "to",
			Usage:    "Replacement file name (e.g. logo.avif)",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Report replacements and diffs without writing",
		},
	)
	flags = append(flags, rewriteFlags()...)
	flags = append(flags, FormatFlag, NoColorFlag)

	return &cli.Command{
		Name:   "rewrite",
		Usage:  "Rewrite references from one file name to another",
		Flags:  flags,
		Action: rewriteAction,
	}
}

// rewriteRow is one rendered file report.
type rewriteRow struct {
	Status       rewrite.FileOutcome `json:"status"`
	Path         string              `json:"path"`
	Replacements int                 `json:"replacements"`
	Error        string              `json:"error,omitempty"`
}

func rewriteAction(c *cli.Context) error {
	pair := types.RenamePair{Original: c.String("from"), New: c.String("to")}
	if err := pair.Validate(); err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	root, err := resolveRoot(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}

	meta := &types.BatchMeta{RunID: c.String("run-id"), Root: root, DryRun: c.Bool("dry-run")}
	logger := buildLogger(c, cfg, meta)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := buildRewriter(c, cfg, root, meta.DryRun, logger).Rewrite(ctx, pair)
	if err != nil {
		return fmt.Errorf("rewrite failed: %w", err)
	}

	if err := renderRewriteReport(c, r, report); err != nil {
		return err
	}
	if _, _, failed := report.Counts(); failed > 0 {
		return cli.Exit(fmt.Sprintf("%d files failed to rewrite", failed), runtime.ExitCodeFailure)
	}
	return nil
}

// renderRewriteReport renders the full report for json/yaml and the
// touched files for tables, followed by diffs on dry runs.
func renderRewriteReport(c *cli.Context, r *render.Renderer, report *rewrite.Report) error {
	if r.Format() != render.FormatTable {
		return r.Render(report)
	}

	var rows []rewriteRow
	for _, f := range report.Files {
		if f.Outcome == rewrite.FileUnchanged {
			continue
		}
		rows = append(rows, rewriteRow{
			Status:       f.Outcome,
			Path:         f.Path,
			Replacements: f.Replacements,
			Error:        f.Error,
		})
	}
	if len(rows) == 0 {
		fmt.Fprintf(c.App.Writer, "no references to %s\n", report.Pair.Original)
		return nil
	}
	if err := r.Render(rows); err != nil {
		return err
	}
	if !report.DryRun {
		return nil
	}
	for _, f := range report.Changed() {
		if len(f.Diff) == 0 {
			continue
		}
		fmt.Fprintf(c.App.Writer, "\n--- %s\n", f.Path)
		for _, line := range f.Diff {
			fmt.Fprintln(c.App.Writer, line)
		}
	}
	return nil
}
