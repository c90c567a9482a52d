// Package rewrite replaces literal references to a renamed file across the
// project's text files.
//
// Matching is literal: the original name is regex-quoted before
// replacement, so names such as "icon (1).svg" match only themselves.
// Rewrites are best effort. A file that cannot be read or written is
// reported and skipped; the scan continues.
package rewrite

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/svgswap/discover"
	"github.com/pithecene-io/svgswap/log"
	"github.com/pithecene-io/svgswap/types"
)

// FileOutcome is the result of rewriting one file.
type FileOutcome string

const (
	// FileUpdated means at least one occurrence was replaced and persisted
	// (or would be, in dry-run mode).
	FileUpdated FileOutcome = "updated"
	// FileUnchanged means the file does not mention the original name.
	FileUnchanged FileOutcome = "unchanged"
	// FileFailed means the file could not be read or written.
	FileFailed FileOutcome = "failed"
)

// FileReport describes one scanned file.
type FileReport struct {
	Path         string      `json:"path"`
	Outcome      FileOutcome `json:"outcome"`
	Replacements int         `json:"replacements,omitempty"`
	Error        string      `json:"error,omitempty"`
	// Diff holds changed lines prefixed with "-" or "+" (dry run only).
	Diff []string `json:"diff,omitempty"`
}

// Report aggregates per-file results for one rename.
type Report struct {
	Pair   types.RenamePair `json:"pair"`
	DryRun bool             `json:"dry_run"`
	Files  []FileReport     `json:"files"`
}

// Counts returns the number of updated, unchanged and failed files.
func (r *Report) Counts() (updated, unchanged, failed int) {
	for _, f := range r.Files {
		switch f.Outcome {
		case FileUpdated:
			updated++
		case FileUnchanged:
			unchanged++
		case FileFailed:
			failed++
		}
	}
	return updated, unchanged, failed
}

// Changed returns reports for updated files only.
func (r *Report) Changed() []FileReport {
	var out []FileReport
	for _, f := range r.Files {
		if f.Outcome == FileUpdated {
			out = append(out, f)
		}
	}
	return out
}

// Options configures a Rewriter.
type Options struct {
	// Root is the project directory to scan.
	Root string
	// Extensions overrides discover.TextExtensions when non-empty.
	Extensions []string
	// ExcludeDirs overrides discover.DefaultExcludeDirs when non-nil.
	ExcludeDirs []string
	// Ignore holds additional glob patterns to skip.
	Ignore []string
	// DryRun computes replacements and diffs without writing.
	DryRun bool
	// Parallel bounds concurrent file processing (default discover.DefaultParallel).
	Parallel int
	// Logger receives per-file failures. Nil discards.
	Logger *log.Logger
}

// Rewriter performs reference rewrites under a root directory.
type Rewriter struct {
	opts   Options
	logger *log.Logger
}

// New creates a Rewriter.
func New(opts Options) *Rewriter {
	if len(opts.Extensions) == 0 {
		opts.Extensions = discover.TextExtensions
	}
	if opts.Parallel <= 0 {
		opts.Parallel = discover.DefaultParallel
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Rewriter{opts: opts, logger: logger.Named("rewrite")}
}

// Rewrite replaces every occurrence of pair.Original with pair.New in the
// scan set. The returned error covers only invalid input, discovery
// failure and cancellation; per-file failures live in the Report.
func (r *Rewriter) Rewrite(ctx context.Context, pair types.RenamePair) (*Report, error) {
	if err := pair.Validate(); err != nil {
		return nil, err
	}

	paths, err := discover.Walk(ctx, discover.Options{
		Root:        r.opts.Root,
		Extensions:  r.opts.Extensions,
		ExcludeDirs: r.opts.ExcludeDirs,
		Ignore:      r.opts.Ignore,
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite: discover text files: %w", err)
	}

	pattern := regexp.MustCompile(regexp.QuoteMeta(pair.Original))
	report := &Report{Pair: pair, DryRun: r.opts.DryRun, Files: make([]FileReport, len(paths))}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallel)
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			report.Files[i] = r.rewriteFile(path, pattern, pair.New)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	updated, _, failed := report.Counts()
	r.logger.Info("reference rewrite finished", map[string]any{
		"original": pair.Original,
		"new":      pair.New,
		"scanned":  len(paths),
		"updated":  updated,
		"failed":   failed,
		"dry_run":  r.opts.DryRun,
	})
	return report, nil
}

func (r *Rewriter) rewriteFile(path string, pattern *regexp.Regexp, replacement string) FileReport {
	data, err := os.ReadFile(path)
	if err != nil {
		return r.failed(path, "read", err)
	}

	before := string(data)
	after, n := ReplaceLiteral(pattern, before, replacement)
	if n == 0 {
		return FileReport{Path: path, Outcome: FileUnchanged}
	}

	fr := FileReport{Path: path, Outcome: FileUpdated, Replacements: n}
	if r.opts.DryRun {
		fr.Diff = ChangedLines(before, after)
		return fr
	}

	info, err := os.Stat(path)
	if err != nil {
		return r.failed(path, "stat", err)
	}
	if err := os.WriteFile(path, []byte(after), info.Mode().Perm()); err != nil {
		return r.failed(path, "write", err)
	}

	r.logger.Debug("rewrote references", map[string]any{
		"path":         path,
		"replacements": n,
	})
	return fr
}

func (r *Rewriter) failed(path, op string, err error) FileReport {
	r.logger.Warn("reference rewrite failed", map[string]any{
		"path":  path,
		"op":    op,
		"error": err.Error(),
	})
	return FileReport{Path: path, Outcome: FileFailed, Error: fmt.Sprintf("%s: %v", op, err)}
}

// ReplaceLiteral replaces every match of pattern in s with the literal
// replacement and returns the result and the number of replacements.
func ReplaceLiteral(pattern *regexp.Regexp, s, replacement string) (string, int) {
	n := len(pattern.FindAllStringIndex(s, -1))
	if n == 0 {
		return s, 0
	}
	return pattern.ReplaceAllLiteralString(s, replacement), n
}
