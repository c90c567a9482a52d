// Package main provides the svgswap CLI entrypoint.
//
// Running svgswap with no command migrates the current directory.
//
// Usage:
//
//	svgswap [options]
//	svgswap <command> [options]
//
// Exit codes:
//   - 0: every candidate processed (including none)
//   - 1: batch aborted or a candidate failed
//   - 2: invalid configuration or usage
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/svgswap/cli/cmd"
	"github.com/pithecene-io/svgswap/runtime"
	"github.com/pithecene-io/svgswap/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(runtime.ExitCodeFailure)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "svgswap",
		Usage:          "Replace large SVG images with smaller AVIF files and rewrite their references",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:          cmd.RunFlags(),
		Action:         cmd.RunAction,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.RewriteCommand(),
			cmd.ResumeCommand(),
			cmd.SummaryCommand(),
			cmd.LedgerCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	os.Exit(reportExit(os.Stderr, err))
}

// reportExit prints err when it carries a message and returns the exit code.
func reportExit(w io.Writer, err error) int {
	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return runtime.ExitCodeFailure
}
