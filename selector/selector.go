// Package selector decides which discovered SVG files qualify for
// conversion and computes the raster width handed to the converter.
package selector

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pithecene-io/svgswap/types"
)

// Policy names the inclusion criterion. Exactly one applies per run.
type Policy string

const (
	// PolicyMinSize admits files at or above MinSize bytes.
	PolicyMinSize Policy = "min_size"
	// PolicyEmbeddedRaster admits files that embed an <image> element,
	// regardless of size.
	PolicyEmbeddedRaster Policy = "embedded_raster"
)

// DefaultMinSize is the size threshold for PolicyMinSize (10 KiB).
const DefaultMinSize = 10 * 1024

// Width transform constants, fitted offline against the raster converter.
const (
	widthScale  = 3.12476
	widthOffset = 0.196661
)

var (
	svgOpenTag   = regexp.MustCompile(`(?is)<svg\b[^>]*>`)
	widthAttr    = regexp.MustCompile(`\swidth="([0-9]+(?:\.[0-9]+)?)"`)
	imageElement = regexp.MustCompile(`(?i)<image\b`)
)

// Config configures a Selector.
type Config struct {
	Policy  Policy
	MinSize int64
}

// Selector applies the inclusion policy.
type Selector struct {
	policy  Policy
	minSize int64
}

// New creates a Selector. An empty policy defaults to PolicyMinSize and a
// non-positive MinSize to DefaultMinSize.
func New(cfg Config) (*Selector, error) {
	policy := cfg.Policy
	if policy == "" {
		policy = PolicyMinSize
	}
	switch policy {
	case PolicyMinSize, PolicyEmbeddedRaster:
	default:
		return nil, fmt.Errorf("invalid selection policy: %q (must be %s or %s)",
			policy, PolicyMinSize, PolicyEmbeddedRaster)
	}

	minSize := cfg.MinSize
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	return &Selector{policy: policy, minSize: minSize}, nil
}

// Policy returns the active policy.
func (s *Selector) Policy() Policy { return s.policy }

// Select returns a Candidate for path, or false when the file is excluded.
// Malformed content never errors; it is simply excluded.
func (s *Selector) Select(path string, size int64, content []byte) (*types.Candidate, bool) {
	switch s.policy {
	case PolicyEmbeddedRaster:
		if !imageElement.Match(content) {
			return nil, false
		}
	default:
		if size < s.minSize {
			return nil, false
		}
	}

	declared, ok := DeclaredWidth(content)
	if !ok {
		return nil, false
	}

	return &types.Candidate{
		Path:          path,
		Dir:           filepath.Dir(path),
		Name:          filepath.Base(path),
		Content:       content,
		Size:          size,
		DeclaredWidth: declared,
		TargetWidth:   TargetWidth(declared),
	}, true
}

// MaxTargetWidth is the largest pixel width a candidate may ask for.
// Declared widths mapping beyond it are treated as malformed.
const MaxTargetWidth = math.MaxInt32

// DeclaredWidth extracts width="<number>" from the root <svg> element.
func DeclaredWidth(content []byte) (float64, bool) {
	tag := svgOpenTag.Find(content)
	if tag == nil {
		return 0, false
	}
	m := widthAttr.FindSubmatch(tag)
	if m == nil {
		return 0, false
	}
	w, err := strconv.ParseFloat(string(bytes.TrimSpace(m[1])), 64)
	if err != nil || math.IsNaN(w) || w <= 0 || widthScale*w+widthOffset > MaxTargetWidth {
		return 0, false
	}
	return w, true
}

// TargetWidth maps a declared coordinate-space width to the pixel width
// the converter expects: round(3.12476*w + 0.196661).
func TargetWidth(declared float64) int {
	return int(math.Round(widthScale*declared + widthOffset))
}
