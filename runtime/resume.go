package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/svgswap/iox"
	"github.com/pithecene-io/svgswap/journal"
	"github.com/pithecene-io/svgswap/lode"
	"github.com/pithecene-io/svgswap/log"
	"github.com/pithecene-io/svgswap/metrics"
	"github.com/pithecene-io/svgswap/rewrite"
	"github.com/pithecene-io/svgswap/types"
)

// ResumeStatus is the outcome of one resumed journal entry.
type ResumeStatus string

const (
	// ResumeCompleted means references were rewritten and the original deleted.
	ResumeCompleted ResumeStatus = "completed"
	// ResumeSkipped means the artifact no longer exists; nothing was changed.
	ResumeSkipped ResumeStatus = "skipped"
	// ResumeFailed means a step failed; the entry stays pending.
	ResumeFailed ResumeStatus = "failed"
)

// ResumeConfig configures Resume.
type ResumeConfig struct {
	// Meta identifies the resuming run. Meta.DryRun is not supported.
	Meta *types.BatchMeta
	// JournalPath is the journal to read and append to.
	JournalPath string
	// Rewriter reruns the reference rewrite for entries not yet rewritten.
	Rewriter Rewriter
	// Ledger receives archived originals when ArchiveOriginals is set.
	Ledger           *lode.Ledger
	ArchiveOriginals bool
	Collector        *metrics.Collector
	Logger           *log.Logger
}

// ResumedEntry is the outcome of one pending entry.
type ResumedEntry struct {
	OriginalPath string           `json:"original_path"`
	ArtifactPath string           `json:"artifact_path"`
	Pair         types.RenamePair `json:"pair"`
	FromPhase    journal.Phase    `json:"from_phase"`
	Status       ResumeStatus     `json:"status"`
	Rewrite      *rewrite.Report  `json:"rewrite,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// ResumeResult aggregates a resume pass.
type ResumeResult struct {
	Entries []ResumedEntry `json:"entries"`
	// JournalRemoved reports that no entry remained pending.
	JournalRemoved bool `json:"journal_removed"`
}

// Failed returns the number of entries that failed.
func (r *ResumeResult) Failed() int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == ResumeFailed {
			n++
		}
	}
	return n
}

// Resume completes every migration the journal records as accepted but
// not completed. Entries whose artifact is gone are skipped.
func Resume(ctx context.Context, cfg *ResumeConfig) (*ResumeResult, error) {
	if cfg.Meta == nil || cfg.JournalPath == "" {
		return nil, errors.New("resume requires batch metadata and a journal path")
	}
	if cfg.Meta.DryRun {
		return nil, errors.New("resume does not support dry run")
	}
	if cfg.Rewriter == nil {
		return nil, errors.New("rewriter is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.Named("resume")

	entries, err := journal.ReadAll(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	pending := journal.Pending(entries)
	result := &ResumeResult{}

	if len(pending) > 0 {
		j, err := journal.Open(cfg.JournalPath, cfg.Meta.RunID)
		if err != nil {
			return nil, err
		}
		for _, e := range pending {
			if err := ctx.Err(); err != nil {
				iox.DiscardClose(j)
				return result, err
			}
			re := resumeEntry(ctx, cfg, j, e, logger)
			result.Entries = append(result.Entries, re)
		}
		if err := j.Close(); err != nil {
			return result, fmt.Errorf("close journal: %w", err)
		}
	}

	removed, err := CompactJournal(cfg.JournalPath)
	if err != nil {
		return result, err
	}
	result.JournalRemoved = removed
	return result, nil
}

func resumeEntry(ctx context.Context, cfg *ResumeConfig, j *journal.Journal, e journal.Entry, logger *log.Logger) ResumedEntry {
	re := ResumedEntry{
		OriginalPath: e.OriginalPath,
		ArtifactPath: e.ArtifactPath,
		Pair:         e.Pair,
		FromPhase:    e.Phase,
	}
	fields := map[string]any{"path": e.OriginalPath, "phase": string(e.Phase)}

	if !iox.Exists(e.ArtifactPath) {
		logger.Warn("artifact missing, skipping", fields)
		re.Status = ResumeSkipped
		re.Error = "artifact missing"
		return re
	}

	failed := func(err error) ResumedEntry {
		logger.Error("resume step failed", map[string]any{"path": e.OriginalPath, "error": err.Error()})
		re.Status = ResumeFailed
		re.Error = err.Error()
		return re
	}

	if e.Phase == journal.PhaseAccepted {
		report, err := cfg.Rewriter.Rewrite(ctx, e.Pair)
		if err != nil {
			return failed(fmt.Errorf("rewrite: %w", err))
		}
		re.Rewrite = report
		updated, _, nFailed := report.Counts()
		cfg.Collector.AddRewrites(updated, nFailed)
		if err := j.Record(journal.PhaseRewritten, e.Pair, e.OriginalPath, e.ArtifactPath); err != nil {
			return failed(err)
		}
	}

	if iox.Exists(e.OriginalPath) {
		if cfg.ArchiveOriginals {
			if err := archiveOriginal(ctx, cfg.Ledger, cfg.Meta.Root, e.OriginalPath); err != nil {
				return failed(err)
			}
		}
		if err := iox.RemoveIfExists(e.OriginalPath); err != nil {
			return failed(fmt.Errorf("delete original: %w", err))
		}
		cfg.Collector.IncOriginalDeleted()
	}

	if err := j.Record(journal.PhaseCompleted, e.Pair, e.OriginalPath, e.ArtifactPath); err != nil {
		return failed(err)
	}
	logger.Info("resumed", fields)
	re.Status = ResumeCompleted
	return re
}

// CompactJournal removes the journal at path when nothing in it is pending
// and reports whether it did.
func CompactJournal(path string) (bool, error) {
	entries, err := journal.ReadAll(path)
	if err != nil {
		return false, fmt.Errorf("read journal: %w", err)
	}
	if len(journal.Pending(entries)) > 0 {
		return false, nil
	}
	if err := journal.Remove(path); err != nil {
		return false, fmt.Errorf("remove journal: %w", err)
	}
	return true, nil
}
