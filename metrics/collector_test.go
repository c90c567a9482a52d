package metrics

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("min_size", "fs", "run-001")

	c.AddFilesDiscovered(5)
	c.IncInspectFailure()
	c.IncCandidateSelected()
	c.IncCandidateSelected()
	c.IncCandidateSelected()
	c.IncSessionStarted()
	c.IncSessionStarted()
	c.IncSessionStarted()
	c.IncSessionFailed(true)
	c.IncArtifactKept(6144)
	c.IncArtifactDiscarded()
	c.AddRewrites(4, 1)
	c.IncOriginalDeleted()
	c.IncLedgerWriteSuccess()
	c.IncLedgerWriteFailure()

	want := Snapshot{
		FilesDiscovered:    5,
		InspectFailures:    1,
		CandidatesSelected: 3,
		SessionsStarted:    3,
		SessionsFailed:     1,
		SessionTimeouts:    1,
		ArtifactsKept:      1,
		ArtifactsDiscarded: 1,
		BytesSaved:         6144,
		FilesRewritten:     4,
		RewriteFailures:    1,
		OriginalsDeleted:   1,
		LedgerWriteSuccess: 1,
		LedgerWriteFailure: 1,
		Policy:             "min_size",
		LedgerBackend:      "fs",
		RunID:              "run-001",
	}
	if diff := cmp.Diff(want, c.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.AddFilesDiscovered(1)
	c.IncSessionFailed(false)
	c.IncArtifactKept(10)
	c.AddRewrites(1, 1)
	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("nil collector snapshot = %+v", s)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("min_size", "", "run-001")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncCandidateSelected()
			c.AddRewrites(2, 0)
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.CandidatesSelected != 50 || s.FilesRewritten != 100 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestSnapshot_Map(t *testing.T) {
	m := Snapshot{BytesSaved: 42, RunID: "r"}.Map()
	if m["bytes_saved"] != int64(42) || m["run_id"] != "r" {
		t.Errorf("Map = %v", m)
	}
}
