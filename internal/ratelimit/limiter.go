// Package ratelimit throttles API traffic per client IP and route class.
// Counters live in Redis when configured; after repeated Redis errors a
// circuit breaker moves checks to an in-memory store until Redis recovers.
package ratelimit

import (
	"context"
	"log/slog"

	"seedtrace/internal/ratelimit/metrics"
	"seedtrace/pkg/platform/circuit"
)

// Store counts one request against key and reports whether it fits.
type Store interface {
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	limits   map[Class]Limit
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithFallback sets the store used while the breaker is open.
func WithFallback(store Store) Option {
	return func(l *Limiter) {
		l.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Limiter) {
		if b != nil {
			l.breaker = b
		}
	}
}

// NewLimiter builds a limiter over primary. Classes missing from limits are
// not limited.
func NewLimiter(primary Store, limits map[Class]Limit, opts ...Option) *Limiter {
	l := &Limiter{
		primary: primary,
		breaker: circuit.New("ratelimit"),
		limits:  limits,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request for ip in class. degraded is true when the
// answer came from the fallback store. A nil result means the class is
// unlimited.
func (l *Limiter) Check(ctx context.Context, class Class, ip string) (res *Result, degraded bool, err error) {
	limit, ok := l.limits[class]
	if !ok || limit.Requests <= 0 || limit.Window <= 0 {
		return nil, false, nil
	}
	key := string(class) + ":" + ip

	if l.fallback != nil && l.breaker.IsOpen() {
		// every request probes the primary until enough succeed to close
		res, err = l.primary.Allow(ctx, key, limit)
		if err == nil {
			if _, change := l.breaker.RecordSuccess(); change.Closed {
				l.logger.Info("rate limit store recovered")
				l.metrics.SetDegraded(false)
			}
			return res, l.breaker.IsOpen(), nil
		}
		l.breaker.RecordFailure()
		l.metrics.IncrementStoreFailures()
		res, err = l.fallback.Allow(ctx, key, limit)
		return res, true, err
	}

	res, err = l.primary.Allow(ctx, key, limit)
	if err == nil {
		l.breaker.RecordSuccess()
		return res, false, nil
	}
	l.metrics.IncrementStoreFailures()
	if l.fallback == nil {
		return nil, false, err
	}
	useFallback, change := l.breaker.RecordFailure()
	if change.Opened {
		l.logger.Warn("rate limit store failing, using in-memory fallback", "error", err)
		l.metrics.SetDegraded(true)
	}
	if !useFallback {
		return nil, false, err
	}
	res, err = l.fallback.Allow(ctx, key, limit)
	return res, true, err
}
