// Package metrics provides per-batch counters.
//
// The Collector accumulates counters during a single batch. It is a leaf
// package with no internal dependencies. All methods are safe on a nil
// receiver so components can be built without metrics.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the batch counters.
type Snapshot struct {
	// Discovery
	FilesDiscovered    int64 `json:"files_discovered" yaml:"files_discovered"`
	InspectFailures    int64 `json:"inspect_failures" yaml:"inspect_failures"`
	CandidatesSelected int64 `json:"candidates_selected" yaml:"candidates_selected"`

	// Conversion
	SessionsStarted int64 `json:"sessions_started" yaml:"sessions_started"`
	SessionsFailed  int64 `json:"sessions_failed" yaml:"sessions_failed"`
	SessionTimeouts int64 `json:"session_timeouts" yaml:"session_timeouts"`

	// Gate
	ArtifactsKept      int64 `json:"artifacts_kept" yaml:"artifacts_kept"`
	ArtifactsDiscarded int64 `json:"artifacts_discarded" yaml:"artifacts_discarded"`
	BytesSaved         int64 `json:"bytes_saved" yaml:"bytes_saved"`

	// Rewrite and cleanup
	FilesRewritten   int64 `json:"files_rewritten" yaml:"files_rewritten"`
	RewriteFailures  int64 `json:"rewrite_failures" yaml:"rewrite_failures"`
	OriginalsDeleted int64 `json:"originals_deleted" yaml:"originals_deleted"`

	// Ledger
	LedgerWriteSuccess int64 `json:"ledger_write_success" yaml:"ledger_write_success"`
	LedgerWriteFailure int64 `json:"ledger_write_failure" yaml:"ledger_write_failure"`

	// Dimensions
	Policy        string `json:"policy" yaml:"policy"`
	LedgerBackend string `json:"ledger_backend,omitempty" yaml:"ledger_backend,omitempty"`
	RunID         string `json:"run_id" yaml:"run_id"`
}

// Collector accumulates metrics during a single batch.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(policy, ledgerBackend, runID string) *Collector {
	return &Collector{s: Snapshot{
		Policy:        policy,
		LedgerBackend: ledgerBackend,
		RunID:         runID,
	}}
}

func (c *Collector) add(f func(s *Snapshot)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	f(&c.s)
	c.mu.Unlock()
}

// AddFilesDiscovered records discovered SVG files.
func (c *Collector) AddFilesDiscovered(n int) {
	c.add(func(s *Snapshot) { s.FilesDiscovered += int64(n) })
}

// IncInspectFailure records a file that could not be read during inspection.
func (c *Collector) IncInspectFailure() {
	c.add(func(s *Snapshot) { s.InspectFailures++ })
}

// IncCandidateSelected records a file that passed the selection policy.
func (c *Collector) IncCandidateSelected() {
	c.add(func(s *Snapshot) { s.CandidatesSelected++ })
}

// IncSessionStarted records a conversion session start.
func (c *Collector) IncSessionStarted() {
	c.add(func(s *Snapshot) { s.SessionsStarted++ })
}

// IncSessionFailed records a failed conversion session. timeout marks
// sessions that exceeded the step timeout.
func (c *Collector) IncSessionFailed(timeout bool) {
	c.add(func(s *Snapshot) {
		s.SessionsFailed++
		if timeout {
			s.SessionTimeouts++
		}
	})
}

// IncArtifactKept records an accepted artifact and the bytes it saves.
func (c *Collector) IncArtifactKept(saved int64) {
	c.add(func(s *Snapshot) {
		s.ArtifactsKept++
		s.BytesSaved += saved
	})
}

// IncArtifactDiscarded records an artifact rejected by the gate.
func (c *Collector) IncArtifactDiscarded() {
	c.add(func(s *Snapshot) { s.ArtifactsDiscarded++ })
}

// AddRewrites records rewritten and failed text files of one rename.
func (c *Collector) AddRewrites(updated, failed int) {
	c.add(func(s *Snapshot) {
		s.FilesRewritten += int64(updated)
		s.RewriteFailures += int64(failed)
	})
}

// IncOriginalDeleted records a deleted original.
func (c *Collector) IncOriginalDeleted() {
	c.add(func(s *Snapshot) { s.OriginalsDeleted++ })
}

// IncLedgerWriteSuccess records a successful ledger write.
func (c *Collector) IncLedgerWriteSuccess() {
	c.add(func(s *Snapshot) { s.LedgerWriteSuccess++ })
}

// IncLedgerWriteFailure records a failed ledger write.
func (c *Collector) IncLedgerWriteFailure() {
	c.add(func(s *Snapshot) { s.LedgerWriteFailure++ })
}

// Snapshot returns a copy of the current counters. A nil Collector yields
// a zero Snapshot.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}

// Map flattens the snapshot for ledger records.
func (s Snapshot) Map() map[string]any {
	return map[string]any{
		"files_discovered":     s.FilesDiscovered,
		"inspect_failures":     s.InspectFailures,
		"candidates_selected":  s.CandidatesSelected,
		"sessions_started":     s.SessionsStarted,
		"sessions_failed":      s.SessionsFailed,
		"session_timeouts":     s.SessionTimeouts,
		"artifacts_kept":       s.ArtifactsKept,
		"artifacts_discarded":  s.ArtifactsDiscarded,
		"bytes_saved":          s.BytesSaved,
		"files_rewritten":      s.FilesRewritten,
		"rewrite_failures":     s.RewriteFailures,
		"originals_deleted":    s.OriginalsDeleted,
		"ledger_write_success": s.LedgerWriteSuccess,
		"ledger_write_failure": s.LedgerWriteFailure,
		"policy":               s.Policy,
		"ledger_backend":       s.LedgerBackend,
		"run_id":               s.RunID,
	}
}
