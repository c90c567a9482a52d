// Package adapter defines the completion notification boundary.
//
// Adapters publish a batch-completed event to a downstream system once a
// migration finishes. The orchestrator owns adapter lifecycle; users
// provide configuration only.
package adapter

import (
	"context"
	"errors"
	"time"
)

// EventTypeBatchCompleted is the event_type of every published event.
const EventTypeBatchCompleted = "batch_completed"

// BatchCompletedEvent is the payload published when a batch finishes.
type BatchCompletedEvent struct {
	EventType  string `json:"event_type"`
	Version    string `json:"version"`
	RunID      string `json:"run_id"`
	Root       string `json:"root"`
	Status     string `json:"status"` // success, partial, aborted
	DryRun     bool   `json:"dry_run"`
	Candidates int    `json:"candidates"`
	Converted  int    `json:"converted"`
	Kept       int    `json:"kept_original"`
	Failed     int    `json:"failed"`
	BytesSaved int64  `json:"bytes_saved"`
	Timestamp  string `json:"timestamp"` // RFC 3339
	DurationMs int64  `json:"duration_ms"`
}

// Adapter publishes batch-completed events.
type Adapter interface {
	// Publish sends the event. Must respect context cancellation.
	Publish(ctx context.Context, event *BatchCompletedEvent) error
	// Close releases adapter resources.
	Close() error
}

// DefaultBackoff is the delay before the first retry; it doubles after
// each further attempt.
const DefaultBackoff = 500 * time.Millisecond

// ErrPermanent marks an error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Retry calls fn up to 1+retries times with exponential backoff. It stops
// early when fn returns an error wrapping ErrPermanent or ctx is done.
// The last error is returned with the number of attempts made.
func Retry(ctx context.Context, retries int, backoff time.Duration, fn func(context.Context) error) (int, error) {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	attempts := 1 + retries
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return i, ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return i + 1, nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return i + 1, lastErr
		}
	}
	return attempts, lastErr
}
