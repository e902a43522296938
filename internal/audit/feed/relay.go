// Package feed relays committed audit records to a change feed. Records are
// read back from the store after commit, so the feed never carries a record
// whose transaction rolled back. Delivery is at least once; consumers dedupe
// by record id.
package feed

import (
	"context"
	"log/slog"
	"time"

	"seedtrace/internal/audit"
	"seedtrace/internal/audit/metrics"
)

// Source is the read side of the audit store.
type Source interface {
	Range(ctx context.Context, afterID, endID int64, limit int) ([]*audit.Record, error)
	LastID(ctx context.Context) (int64, error)
}

// Producer ships a batch of records. It returns only after every record is
// acknowledged or an error occurs.
type Producer interface {
	Publish(ctx context.Context, records []*audit.Record) error
}

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 200
)

// Relay tails the audit log by id and forwards new records to a Producer.
type Relay struct {
	source   Source
	producer Producer
	interval time.Duration
	batch    int
	cursor   int64
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Relay.
type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithCursor starts relaying after the given record id instead of the
// current end of the log.
func WithCursor(afterID int64) Option {
	return func(r *Relay) {
		r.cursor = afterID
	}
}

func NewRelay(source Source, producer Producer, opts ...Option) *Relay {
	r := &Relay{
		source:   source,
		producer: producer,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
		cursor:   -1,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cursor returns the id of the last relayed record.
func (r *Relay) Cursor() int64 {
	return r.cursor
}

// Run polls until ctx is done. Publish failures are logged and retried on
// the next tick from the same cursor.
func (r *Relay) Run(ctx context.Context) error {
	if r.cursor < 0 {
		last, err := r.source.LastID(ctx)
		if err != nil {
			return err
		}
		r.cursor = last
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Poll(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("audit feed relay failed", "cursor", r.cursor, "error", err)
			}
		}
	}
}

// Poll forwards every record past the cursor, one batch at a time, and
// returns how many were published.
func (r *Relay) Poll(ctx context.Context) (int, error) {
	if r.cursor < 0 {
		r.cursor = 0
	}
	total := 0
	for {
		records, err := r.source.Range(ctx, r.cursor, 0, r.batch)
		if err != nil {
			return total, err
		}
		if len(records) == 0 {
			return total, nil
		}
		if err := r.producer.Publish(ctx, records); err != nil {
			r.metrics.IncrementFeedFailure()
			return total, err
		}
		r.cursor = records[len(records)-1].ID
		total += len(records)
		r.metrics.AddFeedPublished(len(records))
		if len(records) < r.batch {
			return total, nil
		}
	}
}
