// Package cmd wires the svgswap subcommands onto urfave/cli.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Output flags shared by every command that prints a result.
var (
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml (default: table on a terminal, json otherwise)",
	}
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored table output",
	}
	// TUIFlag is accepted everywhere so commands without a TUI can
	// reject it with a clear message instead of "flag provided but not
	// defined".
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Open the interactive viewer (summary only)",
	}
)

// ReadOnlyFlags returns the output flags.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

// TUIReadOnlyFlags returns the output flags for commands that implement
// --tui. The set is the same; the name marks intent at the call site.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
