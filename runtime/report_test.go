package runtime

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pithecene-io/svgswap/metrics"
	"github.com/pithecene-io/svgswap/types"
)

func newTestBatchResult() *BatchResult {
	return &BatchResult{
		Meta:       &types.BatchMeta{RunID: "run-001", Root: "/srv/site"},
		Status:     types.BatchPartial,
		Message:    "3 candidates: 1 converted, 1 kept original, 1 failed",
		Discovered: 7,
		Candidates: []CandidateResult{
			{Name: "a.svg", Status: types.CandidateConverted, Decision: types.DecisionKeepArtifact, SourceBytes: 12288, ArtifactBytes: 6144},
			{Name: "b.svg", Status: types.CandidateKeptOriginal, Decision: types.DecisionKeepOriginal, SourceBytes: 12288, ArtifactBytes: 15360},
			{Name: "c.svg", Status: types.CandidateFailed, Error: "vector: upload: timed out"},
		},
		StartedAt: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		Duration:  5 * time.Second,
	}
}

func TestBuildBatchReport(t *testing.T) {
	snap := metrics.Snapshot{CandidatesSelected: 3, RunID: "run-001", Policy: "min_size"}
	report := BuildBatchReport(newTestBatchResult(), snap, ExitCode(types.BatchPartial))

	if report.ExitCode != ExitCodeFailure {
		t.Errorf("ExitCode = %d, want %d", report.ExitCode, ExitCodeFailure)
	}
	if report.StartedAt != "2026-10-18T12:00:00Z" || report.DurationMs != 5000 {
		t.Errorf("timing = %q, %d", report.StartedAt, report.DurationMs)
	}
	want := &ReportTotals{Discovered: 7, Candidates: 3, Converted: 1, Kept: 1, Failed: 1, BytesSaved: 6144}
	if diff := cmp.Diff(want, report.Totals); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
	if report.Metrics.CandidatesSelected != 3 {
		t.Errorf("metrics not embedded: %+v", report.Metrics)
	}
}

func TestBuildBatchReport_NoCandidates(t *testing.T) {
	result := &BatchResult{Meta: &types.BatchMeta{RunID: "run-001"}, Status: types.BatchSuccess}
	report := BuildBatchReport(result, metrics.Snapshot{}, 0)

	var buf bytes.Buffer
	if err := writeBatchReportTo(report, &buf); err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if c, ok := raw["candidates"].([]any); !ok || len(c) != 0 {
		t.Errorf("candidates = %#v, want empty array", raw["candidates"])
	}
}

func TestWriteAndReadBatchReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	report := BuildBatchReport(newTestBatchResult(), metrics.Snapshot{RunID: "run-001"}, 1)

	if err := WriteBatchReport(report, path); err != nil {
		t.Fatalf("WriteBatchReport: %v", err)
	}
	got, err := ReadBatchReport(path)
	if err != nil {
		t.Fatalf("ReadBatchReport: %v", err)
	}
	if diff := cmp.Diff(report, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteBatchReport_EmptyPath(t *testing.T) {
	if err := WriteBatchReport(&BatchReport{}, ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestReadBatchReport_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadBatchReport(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		status types.BatchStatus
		want   int
	}{
		{types.BatchSuccess, ExitCodeSuccess},
		{types.BatchPartial, ExitCodeFailure},
		{types.BatchAborted, ExitCodeFailure},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.status); got != tt.want {
			t.Errorf("ExitCode(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
}
