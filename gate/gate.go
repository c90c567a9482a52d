// Package gate decides whether a conversion artifact replaces its source.
package gate

import (
	"fmt"

	"github.com/pithecene-io/svgswap/iox"
	"github.com/pithecene-io/svgswap/types"
)

// Verdict is the gate result together with the sizes it was based on.
type Verdict struct {
	Decision     types.Decision
	SourceSize   int64
	ArtifactSize int64
}

// Saved returns the bytes saved by accepting the artifact, or 0.
func (v Verdict) Saved() int64 {
	if v.Decision != types.DecisionKeepArtifact {
		return 0
	}
	return v.SourceSize - v.ArtifactSize
}

// Decide returns KeepArtifact iff the artifact is strictly smaller.
// Ties favor the original.
func Decide(sourceSize, artifactSize int64) types.Decision {
	if artifactSize < sourceSize {
		return types.DecisionKeepArtifact
	}
	return types.DecisionKeepOriginal
}

// Apply performs the side effect of a decision: on KeepOriginal the
// artifact is deleted. Safe to call repeatedly.
func Apply(decision types.Decision, artifactPath string) error {
	if decision != types.DecisionKeepOriginal {
		return nil
	}
	return iox.RemoveIfExists(artifactPath)
}

// Evaluate stats both files, decides, and applies the decision.
func Evaluate(sourcePath, artifactPath string) (Verdict, error) {
	sourceSize, err := iox.FileSize(sourcePath)
	if err != nil {
		return Verdict{}, fmt.Errorf("gate: stat source: %w", err)
	}
	artifactSize, err := iox.FileSize(artifactPath)
	if err != nil {
		return Verdict{}, fmt.Errorf("gate: stat artifact: %w", err)
	}

	v := Verdict{
		Decision:     Decide(sourceSize, artifactSize),
		SourceSize:   sourceSize,
		ArtifactSize: artifactSize,
	}
	if err := Apply(v.Decision, artifactPath); err != nil {
		return v, fmt.Errorf("gate: discard artifact: %w", err)
	}
	return v, nil
}
