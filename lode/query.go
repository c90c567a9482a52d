package lode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// ErrNoBatchFound is returned when the ledger holds no matching batch record.
var ErrNoBatchFound = errors.New("no batch records found")

// RunRecords are the ledger rows of one batch.
type RunRecords struct {
	RunID      string           `json:"run_id"`
	Batch      map[string]any   `json:"batch"`
	Candidates []map[string]any `json:"candidates"`
}

// OpenDataset opens a ledger dataset for reading.
func OpenDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newDataset(dataset, factory)
	return ds, wrap(err, "init", dataset)
}

// QueryRun reads the records of runID, or of the most recent batch when
// runID is empty.
func QueryRun(ctx context.Context, ds lode.Dataset, runID string) (*RunRecords, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, wrap(err, "read", "snapshots")
	}

	out := &RunRecords{RunID: runID}
	seen := make(map[string]struct{})

	// Latest first. Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if out.RunID != "" && !snapshotMatches(snap, "run_id", out.RunID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, wrap(err, "read", fmt.Sprintf("snapshot/%s", snap.ID))
		}

		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			id := toString(record["run_id"])
			if out.RunID == "" {
				if record["record_kind"] != RecordKindBatch {
					continue
				}
				out.RunID = id
			}
			if id != out.RunID {
				continue
			}
			key := recordKey(record)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			switch record["record_kind"] {
			case RecordKindBatch:
				if out.Batch == nil {
					out.Batch = record
				}
			case RecordKindCandidate:
				out.Candidates = append(out.Candidates, record)
			}
		}
	}

	if out.Batch == nil {
		return nil, ErrNoBatchFound
	}
	sort.SliceStable(out.Candidates, func(i, j int) bool {
		return toString(out.Candidates[i]["ts"]) < toString(out.Candidates[j]["ts"])
	})
	return out, nil
}

// snapshotMatches checks whether any file of the snapshot lies in the
// key=value partition. Segments are compared exactly so run-1 does not
// match run-10.
func snapshotMatches(snap *lode.DatasetSnapshot, key, value string) bool {
	segment := key + "=" + value
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if part == segment {
				return true
			}
		}
	}
	return false
}

// recordKey identifies a record across snapshots whose manifests may
// repeat earlier files.
func recordKey(record map[string]any) string {
	return strings.Join([]string{
		toString(record["record_kind"]),
		toString(record["run_id"]),
		toString(record["path"]),
		toString(record["ts"]),
		toString(record["finished_at"]),
	}, "\x00")
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
