// Package types defines core domain types for the svgswap migration.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Candidate is a discovered SVG file that passed the selection policy.
// Immutable once selected.
type Candidate struct {
	// Path is the absolute path of the SVG file.
	Path string
	// Dir is the directory containing the file.
	Dir string
	// Name is the base filename (e.g. "logo.svg").
	Name string
	// Content is the raw text content read during inspection.
	Content []byte
	// Size is the file size in bytes at inspection time.
	Size int64
	// DeclaredWidth is the width attribute of the root element.
	DeclaredWidth float64
	// TargetWidth is the pixel width handed to the raster converter.
	TargetWidth int
}

// ArtifactName returns the base filename of the replacement artifact
// (same stem, new extension).
func (c *Candidate) ArtifactName(ext string) string {
	return strings.TrimSuffix(c.Name, filepath.Ext(c.Name)) + ext
}

// ArtifactPath returns the absolute path the artifact is written to,
// beside the original.
func (c *Candidate) ArtifactPath(ext string) string {
	return filepath.Join(c.Dir, c.ArtifactName(ext))
}

// RenamePair is the rewrite key: two base filenames differing only in extension.
type RenamePair struct {
	Original string `json:"original" msgpack:"original"`
	New      string `json:"new" msgpack:"new"`
}

// Validate checks that both names are present, differ, and share a stem.
func (p RenamePair) Validate() error {
	if p.Original == "" || p.New == "" {
		return errors.New("rename pair requires both original and new names")
	}
	if p.Original == p.New {
		return fmt.Errorf("rename pair names are identical: %q", p.Original)
	}
	if stem(p.Original) != stem(p.New) {
		return fmt.Errorf("rename pair %q -> %q changes more than the extension", p.Original, p.New)
	}
	return nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
