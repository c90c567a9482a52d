package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/svgswap/metrics"
	"github.com/pithecene-io/svgswap/types"
)

// BatchReport is the structured JSON report written by --report and read
// by the summary command.
type BatchReport struct {
	RunID      string            `json:"run_id"`
	Version    string            `json:"version"`
	Root       string            `json:"root"`
	DryRun     bool              `json:"dry_run"`
	Status     types.BatchStatus `json:"status"`
	Message    string            `json:"message"`
	ExitCode   int               `json:"exit_code"`
	StartedAt  string            `json:"started_at"`
	DurationMs int64             `json:"duration_ms"`

	Totals     *ReportTotals     `json:"totals"`
	Candidates []CandidateResult `json:"candidates"`
	Metrics    *metrics.Snapshot `json:"metrics"`
}

// ReportTotals holds aggregate candidate counts.
type ReportTotals struct {
	Discovered int   `json:"discovered"`
	Candidates int   `json:"candidates"`
	Converted  int   `json:"converted"`
	Kept       int   `json:"kept_original"`
	Failed     int   `json:"failed"`
	BytesSaved int64 `json:"bytes_saved"`
}

// BuildBatchReport composes a BatchReport from a BatchResult and metrics
// snapshot. exitCode is the process exit code that will be returned.
func BuildBatchReport(result *BatchResult, snap metrics.Snapshot, exitCode int) *BatchReport {
	converted, kept, failed, saved := result.Tally()
	candidates := result.Candidates
	if candidates == nil {
		candidates = []CandidateResult{}
	}
	return &BatchReport{
		RunID:      result.Meta.RunID,
		Version:    types.Version,
		Root:       result.Meta.Root,
		DryRun:     result.Meta.DryRun,
		Status:     result.Status,
		Message:    result.Message,
		ExitCode:   exitCode,
		StartedAt:  result.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		DurationMs: result.Duration.Milliseconds(),
		Totals: &ReportTotals{
			Discovered: result.Discovered,
			Candidates: len(result.Candidates),
			Converted:  converted,
			Kept:       kept,
			Failed:     failed,
			BytesSaved: saved,
		},
		Candidates: candidates,
		Metrics:    &snap,
	}
}

// WriteBatchReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteBatchReport(report *BatchReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeBatchReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// ReadBatchReport loads a report written by WriteBatchReport.
func ReadBatchReport(path string) (*BatchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report BatchReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &report, nil
}

func writeBatchReportTo(report *BatchReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *BatchReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
