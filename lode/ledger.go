// Package lode persists the migration ledger with Lode.
//
// Every processed candidate and every batch summary becomes a JSONL record
// in a Hive-partitioned dataset (project/day/run_id/record_kind) on the
// local filesystem or S3. Deleted originals can optionally be archived as
// plain files beside the records.
package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// DefaultDataset is the ledger dataset ID.
const DefaultDataset = "svgswap"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"project", "day", "run_id", "record_kind"}

// TimestampFormat is a fixed-width RFC 3339 layout, so ledger timestamps
// sort lexically.
const TimestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DeriveDay computes the partition day from batch start time (YYYY-MM-DD UTC).
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds ledger partition values.
type Config struct {
	// Dataset is the Lode dataset ID (default DefaultDataset).
	Dataset string
	// Project is the base name of the migrated directory.
	Project string
	// Day is derived from the batch start time.
	Day string
	// RunID is the batch run identifier.
	RunID string
}

func (c Config) withDefaults() Config {
	if c.Dataset == "" {
		c.Dataset = DefaultDataset
	}
	return c
}

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket.
	Prefix string
	// Region is the AWS region (default chain if empty).
	Region string
	// Endpoint is a custom endpoint for S3-compatible providers (R2, MinIO).
	Endpoint string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	parts := strings.SplitN(p, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// NewS3Factory builds a Lode store factory over S3 using the AWS SDK
// default credential chain.
func NewS3Factory(ctx context.Context, s3cfg S3Config) (lode.StoreFactory, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if s3cfg.Endpoint != "" {
		endpoint := s3cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if s3cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: s3cfg.Bucket,
			Prefix: s3cfg.Prefix,
		})
	}, nil
}

// newDataset opens the ledger dataset with the shared layout and codec.
func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// Ledger writes candidate and batch records. A nil *Ledger discards
// everything.
type Ledger struct {
	dataset      lode.Dataset
	config       Config
	storeFactory lode.StoreFactory

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// New creates a ledger over the given store factory.
// The factory may be called more than once, so tests share one
// lode.NewMemory store through a closure.
func New(cfg Config, factory lode.StoreFactory) (*Ledger, error) {
	cfg = cfg.withDefaults()
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, wrap(err, "init", cfg.Dataset)
	}
	return &Ledger{dataset: ds, config: cfg, storeFactory: factory}, nil
}

// NewFS creates a ledger rooted at a local directory.
func NewFS(cfg Config, root string) (*Ledger, error) {
	return New(cfg, lode.NewFSFactory(root))
}

// NewS3 creates a ledger in an S3 bucket.
func NewS3(ctx context.Context, cfg Config, s3cfg S3Config) (*Ledger, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, wrap(err, "init", s3cfg.Bucket)
	}
	return New(cfg, factory)
}

// Dataset returns the underlying dataset for reads.
func (l *Ledger) Dataset() lode.Dataset {
	if l == nil {
		return nil
	}
	return l.dataset
}

// RecordCandidate appends one candidate record.
func (l *Ledger) RecordCandidate(ctx context.Context, r CandidateRecord) error {
	if l == nil {
		return nil
	}
	if r.Ts == "" {
		r.Ts = time.Now().UTC().Format(TimestampFormat)
	}
	_, err := l.dataset.Write(ctx, []any{toCandidateRecordMap(r, l.config)}, lode.Metadata{})
	return wrap(err, "write", l.config.Dataset)
}

// RecordBatch appends the batch summary record.
func (l *Ledger) RecordBatch(ctx context.Context, r BatchRecord) error {
	if l == nil {
		return nil
	}
	_, err := l.dataset.Write(ctx, []any{toBatchRecordMap(r, l.config)}, lode.Metadata{})
	return wrap(err, "write", l.config.Dataset)
}

// ArchiveOriginal stores the bytes of a file about to be deleted under the
// batch's files/ prefix. name must be a base name.
func (l *Ledger) ArchiveOriginal(ctx context.Context, name string, data []byte) error {
	if l == nil {
		return nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid archive name %q", name)
	}

	store, err := l.getOrCreateStore()
	if err != nil {
		return wrap(err, "init", l.config.Dataset)
	}
	p := l.ArchivePath(name)
	return wrap(store.Put(ctx, p, bytes.NewReader(data)), "archive", p)
}

// ArchivePath is the store path of an archived original.
// Format: datasets/<dataset>/partitions/project=<p>/day=<d>/run_id=<r>/files/<name>
func (l *Ledger) ArchivePath(name string) string {
	return path.Join(
		"datasets", l.config.Dataset, "partitions",
		"project="+l.config.Project,
		"day="+l.config.Day,
		"run_id="+l.config.RunID,
		"files", name,
	)
}

// Close releases ledger resources.
func (l *Ledger) Close() error {
	return nil
}

func (l *Ledger) getOrCreateStore() (lode.Store, error) {
	l.storeOnce.Do(func() {
		l.store, l.storeErr = l.storeFactory()
	})
	return l.store, l.storeErr
}
