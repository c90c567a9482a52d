package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/cli/render"
	"github.com/pithecene-io/svgswap/cli/tui"
	"github.com/pithecene-io/svgswap/runtime"
)

// SummaryCommand returns the summary command, which renders a batch
// report written by --report.
func SummaryCommand() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Show a batch report",
		ArgsUsage: "<report.json>",
		Flags:     TUIReadOnlyFlags(),
		Action:    summaryAction,
	}
}

// summaryView is the flat table rendering of a report header.
type summaryView struct {
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	DryRun     bool   `json:"dry_run"`
	Root       string `json:"root"`
	Message    string `json:"message"`
	Discovered int    `json:"discovered"`
	Candidates int    `json:"candidates"`
	Converted  int    `json:"converted"`
	Kept       int    `json:"kept_original"`
	Failed     int    `json:"failed"`
	Saved      string `json:"bytes_saved"`
	DurationMs int64  `json:"duration_ms"`
}

// candidateRow is one candidate line of the table rendering.
type candidateRow struct {
	Status   string `json:"status"`
	Path     string `json:"path"`
	Source   string `json:"source"`
	Artifact string `json:"artifact"`
	Error    string `json:"error"`
}

func summaryAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: svgswap summary <report.json>", runtime.ExitCodeConfig)
	}
	report, err := runtime.ReadBatchReport(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeFailure)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewSummaryBatch, report)
	}
	if r.Format() != render.FormatTable {
		return r.Render(report)
	}
	return renderSummaryTable(c, r, report)
}

func renderSummaryTable(c *cli.Context, r *render.Renderer, report *runtime.BatchReport) error {
	view := summaryView{
		RunID:      report.RunID,
		Status:     string(report.Status),
		DryRun:     report.DryRun,
		Root:       report.Root,
		Message:    report.Message,
		DurationMs: report.DurationMs,
	}
	if t := report.Totals; t != nil {
		view.Discovered = t.Discovered
		view.Candidates = t.Candidates
		view.Converted = t.Converted
		view.Kept = t.Kept
		view.Failed = t.Failed
		view.Saved = tui.FormatBytes(t.BytesSaved)
	}
	if err := r.Render(view); err != nil {
		return err
	}
	if len(report.Candidates) == 0 {
		return nil
	}

	rows := make([]candidateRow, 0, len(report.Candidates))
	for _, cr := range report.Candidates {
		row := candidateRow{
			Status: string(cr.Status),
			Path:   cr.Path,
			Source: tui.FormatBytes(cr.SourceBytes),
			Error:  cr.Error,
		}
		if cr.ArtifactBytes > 0 {
			row.Artifact = tui.FormatBytes(cr.ArtifactBytes)
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(c.App.Writer)
	return r.Render(rows)
}
