// Package journal records the progress of accepted conversions so an
// interrupted migration can be completed later.
//
// The journal is an append-only file of length-prefixed msgpack frames.
// Each accepted candidate moves through accepted, rewritten and completed.
// An entry whose latest phase is not completed marks a migration whose
// references or original may be in an intermediate state.
package journal

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/pithecene-io/svgswap/iox"
	"github.com/pithecene-io/svgswap/types"
)

// DefaultFileName is the journal file created in the working directory.
const DefaultFileName = ".svgswap-journal"

// Phase is a step of an accepted migration.
type Phase string

const (
	// PhaseAccepted means the gate kept the artifact; rewriting has not finished.
	PhaseAccepted Phase = "accepted"
	// PhaseRewritten means references were rewritten; the original still exists.
	PhaseRewritten Phase = "rewritten"
	// PhaseCompleted means the original was deleted.
	PhaseCompleted Phase = "completed"
)

// Entry is one journal record.
type Entry struct {
	Seq          int64            `msgpack:"seq" json:"seq"`
	RunID        string           `msgpack:"run_id" json:"run_id"`
	Phase        Phase            `msgpack:"phase" json:"phase"`
	Pair         types.RenamePair `msgpack:"pair" json:"pair"`
	OriginalPath string           `msgpack:"original_path" json:"original_path"`
	ArtifactPath string           `msgpack:"artifact_path" json:"artifact_path"`
	Ts           string           `msgpack:"ts" json:"ts"`
}

// Journal appends entries to a file. A nil *Journal discards all records,
// which is how dry runs and journal-less configurations use it.
type Journal struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	runID string
	seq   int64
	now   func() time.Time
}

// Open opens (or creates) the journal at path for appending.
func Open(path, runID string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{file: f, path: path, runID: runID, now: time.Now}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Record appends an entry and syncs it to disk.
func (j *Journal) Record(phase Phase, pair types.RenamePair, originalPath, artifactPath string) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	frame, err := encodeFrame(&Entry{
		Seq:          j.seq,
		RunID:        j.runID,
		Phase:        phase,
		Pair:         pair,
		OriginalPath: originalPath,
		ArtifactPath: artifactPath,
		Ts:           j.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	if _, err := j.file.Write(frame); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.file.Close()
}

// ReadAll reads every entry in the journal at path. A missing journal
// yields no entries. A truncated final frame is ignored; earlier entries
// are still returned.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer iox.DiscardClose(f)

	return decodeAll(f)
}

func decodeAll(r io.Reader) ([]Entry, error) {
	dec := &frameDecoder{reader: r}
	var entries []Entry
	for {
		payload, err := dec.readFrame()
		if err == io.EOF || IsPartialFrame(err) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		e, err := decodeEntry(payload)
		if err != nil {
			return entries, err
		}
		entries = append(entries, *e)
	}
}

// Pending returns, per original path, the latest entry whose phase is not
// completed. Order follows first appearance in the journal.
func Pending(entries []Entry) []Entry {
	latest := make(map[string]Entry, len(entries))
	var order []string
	for _, e := range entries {
		if _, seen := latest[e.OriginalPath]; !seen {
			order = append(order, e.OriginalPath)
		}
		latest[e.OriginalPath] = e
	}

	var pending []Entry
	for _, path := range order {
		if e := latest[path]; e.Phase != PhaseCompleted {
			pending = append(pending, e)
		}
	}
	return pending
}

// Remove deletes the journal at path once nothing is pending.
func Remove(path string) error {
	return iox.RemoveIfExists(path)
}
