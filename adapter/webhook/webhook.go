// Package webhook POSTs finished-batch events to an HTTP endpoint.
//
// Network errors, 5xx, 408 and 429 are retried with backoff. Any other
// non-2xx status fails at once.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/svgswap/adapter"
	"github.com/pithecene-io/svgswap/iox"
)

const DefaultTimeout = 10 * time.Second

// Headers set on every delivery. The run ID doubles as an idempotency
// key: a retried delivery carries the same value.
const (
	HeaderEvent          = "X-Svgswap-Event"
	HeaderRunID          = "X-Svgswap-Run-Id"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Config configures the webhook notifier.
type Config struct {
	URL string
	// Headers are added after the defaults and may override them.
	Headers map[string]string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Notifier implements adapter.Adapter over net/http.
type Notifier struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Notifier{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// retriable reports whether a delivery answered with code may succeed later.
func retriable(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// Publish delivers event, retrying transient failures.
func (n *Notifier) Publish(ctx context.Context, event *adapter.BatchCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	attempts, err := adapter.Retry(ctx, n.cfg.Retries, n.cfg.Backoff, func(ctx context.Context) error {
		return n.post(ctx, event, payload)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, adapter.ErrPermanent):
		return fmt.Errorf("webhook: non-retriable error: %w", err)
	default:
		return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, err)
	}
}

func (n *Notifier) post(ctx context.Context, event *adapter.BatchCompletedEvent, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", adapter.ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.EventType)
	req.Header.Set(HeaderRunID, event.RunID)
	req.Header.Set(HeaderIdempotencyKey, event.RunID)
	for k, v := range n.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := &StatusError{Code: resp.StatusCode}
	if retriable(resp.StatusCode) {
		return statusErr
	}
	return fmt.Errorf("%w: %w", adapter.ErrPermanent, statusErr)
}

// Close drops idle connections.
func (n *Notifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Notifier)(nil)
