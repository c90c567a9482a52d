// Package redis announces finished batches over Redis.
//
// Each event is PUBLISHed on a channel for live subscribers and pushed
// onto a capped history list in the same MULTI block, so consumers that
// connect later can still read the most recent batches.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/svgswap/adapter"
)

const (
	DefaultChannel      = "svgswap:batch_completed"
	DefaultHistoryKey   = "svgswap:batches"
	DefaultHistoryLimit = 100
	DefaultTimeout      = 5 * time.Second
)

// Config configures the Redis notifier.
type Config struct {
	// URL is required, e.g. redis://[:password@]host:port[/db].
	URL     string
	Channel string
	// HistoryKey names the list holding recent events. HistoryLimit < 0
	// disables the list.
	HistoryKey   string
	HistoryLimit int
	// Timeout bounds one attempt. Retries counts extra attempts after the
	// first; Backoff is the delay before the first retry.
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Notifier implements adapter.Adapter on a go-redis client.
type Notifier struct {
	cfg    Config
	client *goredis.Client
}

// New validates cfg and builds the client. No connection is made until
// the first Publish.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.HistoryKey == "" {
		cfg.HistoryKey = DefaultHistoryKey
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Notifier{cfg: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish announces event, retrying transient failures.
func (n *Notifier) Publish(ctx context.Context, event *adapter.BatchCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	attempts, err := adapter.Retry(ctx, n.cfg.Retries, n.cfg.Backoff, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
		defer cancel()
		return n.send(ctx, payload)
	})
	if err != nil {
		return fmt.Errorf("redis: failed after %d attempts: %w", attempts, err)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, payload []byte) error {
	_, err := n.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Publish(ctx, n.cfg.Channel, payload)
		if n.cfg.HistoryLimit > 0 {
			pipe.LPush(ctx, n.cfg.HistoryKey, payload)
			pipe.LTrim(ctx, n.cfg.HistoryKey, 0, int64(n.cfg.HistoryLimit-1))
		}
		return nil
	})
	return err
}

// Close closes the client.
func (n *Notifier) Close() error {
	return n.client.Close()
}

var _ adapter.Adapter = (*Notifier)(nil)
