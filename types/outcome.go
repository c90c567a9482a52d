package types

// CandidateStatus is the final status of one candidate in a batch.
type CandidateStatus string

const (
	// CandidateConverted means the artifact replaced the original.
	CandidateConverted CandidateStatus = "converted"
	// CandidateKeptOriginal means the gate rejected the artifact.
	CandidateKeptOriginal CandidateStatus = "kept_original"
	// CandidateFailed means the session or rewrite failed.
	CandidateFailed CandidateStatus = "failed"
)

// BatchStatus is the outcome of a whole batch.
type BatchStatus string

const (
	// BatchSuccess means every candidate was processed without failure.
	BatchSuccess BatchStatus = "success"
	// BatchPartial means some candidates failed under the continue policy.
	BatchPartial BatchStatus = "partial"
	// BatchAborted means a fatal error halted the batch.
	BatchAborted BatchStatus = "aborted"
)

// BatchMeta identifies a batch run.
type BatchMeta struct {
	// RunID is a unique identifier for the batch.
	RunID string
	// Root is the absolute working directory being migrated.
	Root string
	// DryRun reports whether destructive steps are suppressed.
	DryRun bool
}
