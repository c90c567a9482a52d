// Package runtime orchestrates migration batches: discovery, conversion,
// gating, reference rewriting and cleanup, plus journal-driven resume.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pithecene-io/svgswap/adapter"
	"github.com/pithecene-io/svgswap/convert"
	"github.com/pithecene-io/svgswap/discover"
	"github.com/pithecene-io/svgswap/gate"
	"github.com/pithecene-io/svgswap/iox"
	"github.com/pithecene-io/svgswap/journal"
	"github.com/pithecene-io/svgswap/lode"
	"github.com/pithecene-io/svgswap/log"
	"github.com/pithecene-io/svgswap/metrics"
	"github.com/pithecene-io/svgswap/rewrite"
	"github.com/pithecene-io/svgswap/types"
)

// OnError selects how the batch reacts to a failed candidate.
type OnError string

const (
	// OnErrorAbort halts the batch at the first failed candidate.
	OnErrorAbort OnError = "abort"
	// OnErrorContinue records the failure and moves to the next candidate.
	OnErrorContinue OnError = "continue"
)

// ParseOnError validates an on_error value. Empty means OnErrorAbort.
func ParseOnError(s string) (OnError, error) {
	switch OnError(s) {
	case "", OnErrorAbort:
		return OnErrorAbort, nil
	case OnErrorContinue:
		return OnErrorContinue, nil
	default:
		return "", fmt.Errorf("invalid on_error %q (expected abort or continue)", s)
	}
}

// Selector decides whether an inspected file is a candidate.
type Selector interface {
	Select(path string, size int64, content []byte) (*types.Candidate, bool)
}

// Rewriter replaces references to one filename under the batch root.
type Rewriter interface {
	Rewrite(ctx context.Context, pair types.RenamePair) (*rewrite.Report, error)
}

// PublishTimeout bounds the completion notification.
const PublishTimeout = 30 * time.Second

// BatchConfig configures a migration batch.
type BatchConfig struct {
	// Meta is the batch identity. Meta.Root is the directory migrated.
	Meta *types.BatchMeta
	// Selector filters discovered files.
	Selector Selector
	// Converter produces the artifact for a candidate.
	Converter convert.Converter
	// Rewriter rewrites references after an accepted conversion. It must
	// be configured with the same dry-run setting as Meta.
	Rewriter Rewriter
	// ExcludeDirs and Ignore narrow SVG discovery (nil ExcludeDirs means
	// discover.DefaultExcludeDirs).
	ExcludeDirs []string
	Ignore      []string
	// Parallel bounds concurrent inspection reads.
	Parallel int
	// OnError is the failure policy (default abort).
	OnError OnError
	// Journal records migration phases. Nil disables journaling.
	Journal *journal.Journal
	// Ledger records per-candidate outcomes. Nil disables the ledger.
	Ledger *lode.Ledger
	// ArchiveOriginals copies each original into the ledger before deletion.
	ArchiveOriginals bool
	// Adapter is notified once the batch finishes. Optional.
	Adapter adapter.Adapter
	// Collector records batch metrics. Nil-safe.
	Collector *metrics.Collector
	// Logger receives batch logs. Nil discards.
	Logger *log.Logger
}

// CandidateResult is the outcome of one candidate.
type CandidateResult struct {
	Path          string                `json:"path"`
	Name          string                `json:"name"`
	DeclaredWidth float64               `json:"declared_width"`
	TargetWidth   int                   `json:"target_width"`
	Status        types.CandidateStatus `json:"status"`
	Decision      types.Decision        `json:"decision,omitempty"`
	SourceBytes   int64                 `json:"source_bytes"`
	ArtifactBytes int64                 `json:"artifact_bytes,omitempty"`
	ArtifactPath  string                `json:"artifact_path,omitempty"`
	Rewrite       *rewrite.Report       `json:"rewrite,omitempty"`
	Archived      bool                  `json:"archived,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Saved returns bytes saved by this candidate's conversion.
func (r CandidateResult) Saved() int64 {
	if r.Decision != types.DecisionKeepArtifact {
		return 0
	}
	return r.SourceBytes - r.ArtifactBytes
}

// BatchResult represents the result of a batch.
type BatchResult struct {
	// Meta is the batch identity.
	Meta *types.BatchMeta
	// Status is the batch outcome.
	Status types.BatchStatus
	// Message describes the outcome.
	Message string
	// Discovered is the number of SVG files found.
	Discovered int
	// Candidates holds per-candidate results in processing order.
	Candidates []CandidateResult
	// StartedAt is the batch start time.
	StartedAt time.Time
	// Duration is the total batch duration.
	Duration time.Duration
}

// Tally returns counts of converted, kept and failed candidates and the
// total bytes saved.
func (r *BatchResult) Tally() (converted, kept, failed int, saved int64) {
	for _, c := range r.Candidates {
		switch c.Status {
		case types.CandidateConverted:
			converted++
		case types.CandidateKeptOriginal:
			kept++
		case types.CandidateFailed:
			failed++
		}
		saved += c.Saved()
	}
	return converted, kept, failed, saved
}

// BatchOrchestrator runs a migration batch.
type BatchOrchestrator struct {
	config *BatchConfig
	logger *log.Logger
}

// NewBatchOrchestrator creates a batch orchestrator.
func NewBatchOrchestrator(config *BatchConfig) (*BatchOrchestrator, error) {
	if config.Meta == nil || config.Meta.Root == "" {
		return nil, errors.New("batch root is required")
	}
	if config.Selector == nil {
		return nil, errors.New("selector is required")
	}
	if config.Converter == nil {
		return nil, errors.New("converter is required")
	}
	if config.Rewriter == nil {
		return nil, errors.New("rewriter is required")
	}
	onError, err := ParseOnError(string(config.OnError))
	if err != nil {
		return nil, err
	}
	config.OnError = onError

	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &BatchOrchestrator{config: config, logger: logger.Named("batch")}, nil
}

// Execute runs the batch end-to-end.
//
// Execution flow:
//  1. Discover and inspect SVG files
//  2. Select candidates
//  3. Convert each candidate in turn and gate the artifact
//  4. For accepted artifacts: rewrite references, delete the original
//  5. Record the batch and notify the adapter
//
// The returned error covers discovery failure only; candidate failures and
// cancellation are reflected in BatchResult.Status.
func (b *BatchOrchestrator) Execute(ctx context.Context) (*BatchResult, error) {
	result := &BatchResult{
		Meta:      b.config.Meta,
		StartedAt: time.Now(),
	}

	b.logger.Info("starting batch", map[string]any{
		"on_error": string(b.config.OnError),
		"dry_run":  b.config.Meta.DryRun,
	})

	candidates, discovered, err := b.selectCandidates(ctx)
	if err != nil {
		return nil, err
	}
	result.Discovered = discovered

	b.logger.Info("candidates selected", map[string]any{
		"discovered": discovered,
		"candidates": len(candidates),
	})

	result.Status = types.BatchSuccess
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			result.Status = types.BatchAborted
			result.Message = fmt.Sprintf("canceled after %d of %d candidates", i, len(candidates))
			break
		}

		cr := b.processCandidate(ctx, c)
		result.Candidates = append(result.Candidates, cr)

		if cr.Status != types.CandidateFailed {
			continue
		}
		if b.config.OnError == OnErrorAbort {
			result.Status = types.BatchAborted
			result.Message = fmt.Sprintf("aborted at %s: %s", cr.Name, cr.Error)
			break
		}
		result.Status = types.BatchPartial
	}

	result.Duration = time.Since(result.StartedAt)
	if result.Message == "" {
		result.Message = b.summaryMessage(result)
	}

	b.finish(ctx, result)
	return result, nil
}

func (b *BatchOrchestrator) selectCandidates(ctx context.Context) ([]*types.Candidate, int, error) {
	paths, err := discover.Walk(ctx, discover.Options{
		Root:        b.config.Meta.Root,
		Extensions:  discover.SVGExtensions,
		ExcludeDirs: b.config.ExcludeDirs,
		Ignore:      b.config.Ignore,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("discover svg files: %w", err)
	}
	b.config.Collector.AddFilesDiscovered(len(paths))

	files, err := discover.Inspect(ctx, paths, b.config.Parallel)
	if err != nil {
		return nil, 0, fmt.Errorf("inspect svg files: %w", err)
	}

	var candidates []*types.Candidate
	for _, f := range files {
		if f.Err != nil {
			b.config.Collector.IncInspectFailure()
			b.logger.Debug("skipping unreadable file", map[string]any{
				"path":  f.Path,
				"error": f.Err.Error(),
			})
			continue
		}
		c, ok := b.config.Selector.Select(f.Path, f.Size, f.Content)
		if !ok {
			b.logger.Debug("not selected", map[string]any{"path": f.Path, "size": f.Size})
			continue
		}
		b.config.Collector.IncCandidateSelected()
		candidates = append(candidates, c)
	}
	return candidates, len(paths), nil
}

// processCandidate converts, gates and (on acceptance) migrates one candidate.
// The deferred ledger write sees the final result through the named return.
func (b *BatchOrchestrator) processCandidate(ctx context.Context, c *types.Candidate) (cr CandidateResult) {
	cr = CandidateResult{
		Path:          c.Path,
		Name:          c.Name,
		DeclaredWidth: c.DeclaredWidth,
		TargetWidth:   c.TargetWidth,
		SourceBytes:   c.Size,
	}
	defer func() { b.recordCandidate(ctx, cr) }()

	b.logger.Info("converting", map[string]any{
		"path":         c.Path,
		"target_width": c.TargetWidth,
	})

	b.config.Collector.IncSessionStarted()
	conv, err := b.config.Converter.Convert(ctx, *c)
	if err != nil {
		b.config.Collector.IncSessionFailed(convert.IsTimeout(err))
		b.logger.Error("conversion failed", map[string]any{
			"path":  c.Path,
			"error": err.Error(),
		})
		return fail(cr, err)
	}
	cr.ArtifactPath = conv.ArtifactPath

	verdict, err := gate.Evaluate(c.Path, conv.ArtifactPath)
	if err != nil {
		_ = iox.RemoveIfExists(conv.ArtifactPath)
		return fail(cr, err)
	}
	cr.Decision = verdict.Decision
	cr.SourceBytes = verdict.SourceSize
	cr.ArtifactBytes = verdict.ArtifactSize

	if verdict.Decision == types.DecisionKeepOriginal {
		b.config.Collector.IncArtifactDiscarded()
		b.logger.Info("kept original", map[string]any{
			"path":           c.Path,
			"source_bytes":   verdict.SourceSize,
			"artifact_bytes": verdict.ArtifactSize,
		})
		cr.Status = types.CandidateKeptOriginal
		cr.ArtifactPath = ""
		return cr
	}

	b.config.Collector.IncArtifactKept(verdict.Saved())
	b.logger.Info("artifact accepted", map[string]any{
		"path":        c.Path,
		"bytes_saved": verdict.Saved(),
	})

	pair := types.RenamePair{Original: c.Name, New: c.ArtifactName(convert.ArtifactExt)}
	if b.config.Meta.DryRun {
		return b.previewCandidate(ctx, cr, pair)
	}
	return b.migrateCandidate(ctx, cr, pair)
}

// previewCandidate rewrites in preview mode and discards the artifact.
func (b *BatchOrchestrator) previewCandidate(ctx context.Context, cr CandidateResult, pair types.RenamePair) CandidateResult {
	report, err := b.config.Rewriter.Rewrite(ctx, pair)
	if rmErr := gate.Apply(types.DecisionKeepOriginal, cr.ArtifactPath); rmErr != nil {
		b.logger.Warn("failed to remove dry-run artifact", map[string]any{
			"path":  cr.ArtifactPath,
			"error": rmErr.Error(),
		})
	}
	cr.ArtifactPath = ""
	if err != nil {
		return fail(cr, fmt.Errorf("rewrite preview: %w", err))
	}
	cr.Rewrite = report
	cr.Status = types.CandidateConverted
	return cr
}

// migrateCandidate performs the destructive steps of an accepted
// conversion, journaling each phase. A failure leaves the original in place.
func (b *BatchOrchestrator) migrateCandidate(ctx context.Context, cr CandidateResult, pair types.RenamePair) CandidateResult {
	b.journal(journal.PhaseAccepted, pair, cr)

	report, err := b.config.Rewriter.Rewrite(ctx, pair)
	if err != nil {
		b.logger.Error("rewrite failed, original kept", map[string]any{
			"path":  cr.Path,
			"error": err.Error(),
		})
		return fail(cr, fmt.Errorf("rewrite: %w", err))
	}
	cr.Rewrite = report
	updated, _, failed := report.Counts()
	b.config.Collector.AddRewrites(updated, failed)
	if failed > 0 {
		b.logger.Warn("some references could not be rewritten", map[string]any{
			"path":   cr.Path,
			"failed": failed,
		})
	}
	b.journal(journal.PhaseRewritten, pair, cr)

	if b.config.ArchiveOriginals {
		if err := archiveOriginal(ctx, b.config.Ledger, b.config.Meta.Root, cr.Path); err != nil {
			b.logger.Error("archive failed, original kept", map[string]any{
				"path":  cr.Path,
				"error": err.Error(),
			})
			return fail(cr, err)
		}
		cr.Archived = true
	}

	if err := iox.RemoveIfExists(cr.Path); err != nil {
		return fail(cr, fmt.Errorf("delete original: %w", err))
	}
	b.config.Collector.IncOriginalDeleted()
	b.journal(journal.PhaseCompleted, pair, cr)

	cr.Status = types.CandidateConverted
	return cr
}

func (b *BatchOrchestrator) journal(phase journal.Phase, pair types.RenamePair, cr CandidateResult) {
	if err := b.config.Journal.Record(phase, pair, cr.Path, cr.ArtifactPath); err != nil {
		b.logger.Warn("journal write failed", map[string]any{
			"phase": string(phase),
			"path":  cr.Path,
			"error": err.Error(),
		})
	}
}

func (b *BatchOrchestrator) recordCandidate(ctx context.Context, cr CandidateResult) {
	if b.config.Ledger == nil {
		return
	}
	rec := lode.CandidateRecord{
		Path:          cr.Path,
		Name:          cr.Name,
		Status:        string(cr.Status),
		Decision:      string(cr.Decision),
		DeclaredWidth: cr.DeclaredWidth,
		TargetWidth:   cr.TargetWidth,
		SourceBytes:   cr.SourceBytes,
		ArtifactBytes: cr.ArtifactBytes,
		Archived:      cr.Archived,
		Error:         cr.Error,
	}
	if cr.Rewrite != nil {
		rec.FilesUpdated, _, rec.FilesFailed = cr.Rewrite.Counts()
	}

	// Ledger writes survive batch cancellation.
	writeCtx := context.WithoutCancel(ctx)
	if err := b.config.Ledger.RecordCandidate(writeCtx, rec); err != nil {
		b.config.Collector.IncLedgerWriteFailure()
		b.logger.Warn("ledger write failed", map[string]any{"path": cr.Path, "error": err.Error()})
		return
	}
	b.config.Collector.IncLedgerWriteSuccess()
}

// finish writes the batch record and publishes the completion event.
// Both are best effort.
func (b *BatchOrchestrator) finish(ctx context.Context, result *BatchResult) {
	converted, kept, failed, saved := result.Tally()
	finishCtx := context.WithoutCancel(ctx)

	b.logger.Info("batch finished", map[string]any{
		"status":      string(result.Status),
		"candidates":  len(result.Candidates),
		"converted":   converted,
		"kept":        kept,
		"failed":      failed,
		"bytes_saved": saved,
		"duration_ms": result.Duration.Milliseconds(),
	})

	if b.config.Ledger != nil {
		// Ledger counters cover candidate records only.
		err := b.config.Ledger.RecordBatch(finishCtx, lode.BatchRecord{
			Status:     string(result.Status),
			DryRun:     result.Meta.DryRun,
			Candidates: len(result.Candidates),
			Converted:  converted,
			Kept:       kept,
			Failed:     failed,
			BytesSaved: saved,
			StartedAt:  result.StartedAt.UTC().Format(lode.TimestampFormat),
			FinishedAt: result.StartedAt.Add(result.Duration).UTC().Format(lode.TimestampFormat),
			Metrics:    b.config.Collector.Snapshot().Map(),
		})
		if err != nil {
			b.logger.Warn("ledger batch write failed", map[string]any{"error": err.Error()})
		}
	}

	if b.config.Adapter == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(finishCtx, PublishTimeout)
	defer cancel()
	if err := b.config.Adapter.Publish(pubCtx, BuildEvent(result)); err != nil {
		b.logger.Warn("adapter publish failed", map[string]any{"error": err.Error()})
	}
}

func (b *BatchOrchestrator) summaryMessage(result *BatchResult) string {
	converted, kept, failed, _ := result.Tally()
	return fmt.Sprintf("%d candidates: %d converted, %d kept original, %d failed",
		len(result.Candidates), converted, kept, failed)
}

// BuildEvent converts a batch result into the adapter payload.
func BuildEvent(result *BatchResult) *adapter.BatchCompletedEvent {
	converted, kept, failed, saved := result.Tally()
	return &adapter.BatchCompletedEvent{
		EventType:  adapter.EventTypeBatchCompleted,
		Version:    types.Version,
		RunID:      result.Meta.RunID,
		Root:       result.Meta.Root,
		Status:     string(result.Status),
		DryRun:     result.Meta.DryRun,
		Candidates: len(result.Candidates),
		Converted:  converted,
		Kept:       kept,
		Failed:     failed,
		BytesSaved: saved,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		DurationMs: result.Duration.Milliseconds(),
	}
}

func fail(cr CandidateResult, err error) CandidateResult {
	cr.Status = types.CandidateFailed
	cr.Error = err.Error()
	return cr
}

// archiveOriginal copies the file at path into the ledger. The archive
// name is the root-relative path with separators escaped.
func archiveOriginal(ctx context.Context, ledger *lode.Ledger, root, path string) error {
	if ledger == nil {
		return errors.New("archive requested without a ledger")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read original for archive: %w", err)
	}
	return ledger.ArchiveOriginal(ctx, ArchiveName(root, path), data)
}

// ArchiveName derives the flat archive name of a file under root.
func ArchiveName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return url.PathEscape(filepath.ToSlash(rel))
}
