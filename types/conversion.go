package types

// ConversionResult is produced by a conversion session.
// Owned exclusively by the orchestrator until handed to the gate.
type ConversionResult struct {
	// ArtifactPath is the locally saved artifact.
	ArtifactPath string
	// Success reports whether the session produced an artifact.
	Success bool
}

// Decision is the outcome gate verdict.
type Decision string

const (
	// DecisionKeepArtifact replaces the original with the artifact.
	DecisionKeepArtifact Decision = "keep_artifact"
	// DecisionKeepOriginal discards the artifact.
	DecisionKeepOriginal Decision = "keep_original"
)
