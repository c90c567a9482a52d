package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/cli/config"
	"github.com/pithecene-io/svgswap/cli/render"
	"github.com/pithecene-io/svgswap/iox"
	"github.com/pithecene-io/svgswap/metrics"
	"github.com/pithecene-io/svgswap/runtime"
	"github.com/pithecene-io/svgswap/types"
)

// ResumeCommand returns the resume command. It completes migrations an
// interrupted run recorded as accepted but never finished.
func ResumeCommand() *cli.Command {
	flags := commonFlags()
	flags = append(flags,
		&cli.StringFlag{
			Name:  "journal-path",
			Usage: "Journal file (default: <dir>/.svgswap-journal)",
		},
		&cli.BoolFlag{
			Name:  "archive-originals",
			Usage: "Copy each original into the ledger before deleting it",
		},
	)
	flags = append(flags, rewriteFlags()...)
	flags = append(flags, ledgerFlags()...)
	flags = append(flags, FormatFlag, NoColorFlag)

	return &cli.Command{
		Name:   "resume",
		Usage:  "Finish migrations left pending in the journal",
		Flags:  flags,
		Action: resumeAction,
	}
}

// resumeRow is one rendered resume entry.
type resumeRow struct {
	Status   runtime.ResumeStatus `json:"status"`
	Original string               `json:"original"`
	New      string               `json:"new"`
	From     string               `json:"from_phase"`
	Error    string               `json:"error,omitempty"`
}

func resumeAction(c *cli.Context) error {
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

	runID := c.String("run-id")
	if runID == "" {
		runID = uuid.NewString()
	}
	meta := &types.BatchMeta{RunID: runID, Root: root}
	logger := buildLogger(c, cfg, meta)
	defer logger.Sync()

	lc := resolveLedgerChoice(c, cfg, root)
	if err := lc.validate(); err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	archive := resolveBool(c, "archive-originals", configVal(cfg, func(c *config.Config) bool { return c.Ledger.ArchiveOriginals }))
	if archive && lc.backend == "" {
		return cli.Exit("--archive-originals requires --ledger-backend", runtime.ExitCodeConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := buildLedger(ctx, lc, runID, time.Now())
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open ledger: %v", err), runtime.ExitCodeConfig)
	}
	defer iox.DiscardErr(ledger.Close)

	journalPath, _ := resolveJournal(c, cfg, root)
	result, err := runtime.Resume(ctx, &runtime.ResumeConfig{
		Meta:             meta,
		JournalPath:      journalPath,
		Rewriter:         buildRewriter(c, cfg, root, false, logger),
		Ledger:           ledger,
		ArchiveOriginals: archive,
		Collector:        metrics.NewCollector("resume", lc.backend, runID),
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}

	rows := make([]resumeRow, 0, len(result.Entries))
	for _, e := range result.Entries {
		rows = append(rows, resumeRow{
			Status:   e.Status,
			Original: e.Pair.Original,
			New:      e.Pair.New,
			From:     string(e.FromPhase),
			Error:    e.Error,
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(c.App.ErrWriter, "nothing to resume")
	} else if err := r.Render(rows); err != nil {
		return err
	}

	if result.Failed() > 0 {
		return cli.Exit(fmt.Sprintf("%d entries failed to resume", result.Failed()), runtime.ExitCodeFailure)
	}
	return nil
}
