package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/cli/render"
	"github.com/pithecene-io/svgswap/lode"
	"github.com/pithecene-io/svgswap/runtime"
)

// LedgerCommand returns the ledger command, which reads back the records
// of one batch (the most recent when --run-id is omitted).
func LedgerCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run to read (default: most recent batch)",
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Working directory used to locate svgswap.yaml",
			Value: ".",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to svgswap.yaml",
		},
	}
	flags = append(flags, ledgerFlags()...)
	flags = append(flags, ReadOnlyFlags()...)

	return &cli.Command{
		Name:   "ledger",
		Usage:  "Show ledger records of a batch",
		Flags:  flags,
		Action: ledgerAction,
	}
}

func ledgerAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for ledger command", runtime.ExitCodeConfig)
	}

	root, err := resolveRoot(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	lc := resolveLedgerChoice(c, cfg, root)
	if lc.backend == "" {
		return cli.Exit("--ledger-backend is required", runtime.ExitCodeConfig)
	}
	if err := lc.validate(); err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}

	factory, err := lc.factory(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open ledger: %v", err), runtime.ExitCodeConfig)
	}
	ds, err := lode.OpenDataset(lc.dataset, factory)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}

	records, err := lode.QueryRun(c.Context, ds, c.String("run-id"))
	if errors.Is(err, lode.ErrNoBatchFound) {
		return cli.Exit(err.Error(), runtime.ExitCodeFailure)
	}
	if err != nil {
		return fmt.Errorf("failed to query ledger: %w", err)
	}

	if r.Format() != render.FormatTable {
		return r.Render(records)
	}
	if err := r.Render(records.Batch); err != nil {
		return err
	}
	if len(records.Candidates) > 0 {
		fmt.Fprintln(c.App.Writer)
		return r.Render(records.Candidates)
	}
	return nil
}
