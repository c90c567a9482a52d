// Package discover finds migration inputs and the text files that may
// reference them.
//
// Traversal skips node_modules/, dist/, build/ and every dot-prefixed
// directory below the root. Symbolic links are not followed.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultExcludeDirs are directory names never descended into.
var DefaultExcludeDirs = []string{"node_modules", "dist", "build"}

// SVGExtensions selects vector images.
var SVGExtensions = []string{".svg"}

// TextExtensions is the reference scan set.
var TextExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".html", ".css", ".scss", ".md", ".json"}

// DefaultParallel bounds concurrent file reads during inspection.
const DefaultParallel = 8

// Options configures a walk.
type Options struct {
	// Root is the directory to walk (made absolute by Walk).
	Root string
	// Extensions are lowercase extensions including the dot.
	Extensions []string
	// ExcludeDirs are directory base names to skip. Nil means DefaultExcludeDirs.
	ExcludeDirs []string
	// Ignore holds glob patterns matched against the slash-separated
	// root-relative path and against the base name.
	Ignore []string
}

// Walk returns the sorted absolute paths of regular files under opts.Root
// whose extension is in opts.Extensions.
func Walk(ctx context.Context, opts Options) ([]string, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", opts.Root, err)
	}

	excludes := opts.ExcludeDirs
	if excludes == nil {
		excludes = DefaultExcludeDirs
	}

	var paths []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("read root %q: %w", root, err)
			}
			// Unreadable subtrees are skipped.
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if strings.HasPrefix(name, ".") || slices.Contains(excludes, name) || ignored(rel, name, opts.Ignore) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !slices.Contains(opts.Extensions, strings.ToLower(filepath.Ext(name))) {
			return nil
		}
		if ignored(rel, name, opts.Ignore) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	slices.Sort(paths)
	return paths, nil
}

func ignored(rel, name string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.TrimSuffix(p, "/")
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// File is the read-only inspection result for one discovered path.
type File struct {
	Path    string
	Size    int64
	Content []byte
	// Err is set when the file could not be read; other fields are then zero.
	Err error
}

// Inspect reads size and content of every path concurrently.
// Per-file read failures are reported in File.Err; only cancellation
// fails the call. Result order matches paths.
func Inspect(ctx context.Context, paths []string, parallel int) ([]File, error) {
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	files := make([]File, len(paths))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			files[i] = inspectOne(path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func inspectOne(path string) File {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{Path: path, Err: err}
	}
	return File{Path: path, Size: int64(len(content)), Content: content}
}
