package main

import (
	"log/slog"
	"time"

	"seedtrace/internal/platform/config"
	"seedtrace/internal/platform/redis"
	"seedtrace/internal/ratelimit"
	ratelimitmetrics "seedtrace/internal/ratelimit/metrics"
	"seedtrace/pkg/platform/circuit"
)

// newRateLimiter counts in Redis when available, with the returned memory
// store as fallback; without Redis the memory store is primary.
func newRateLimiter(cfg config.RateLimitConfig, rc *redis.Client, log *slog.Logger) (*ratelimit.Limiter, *ratelimit.MemoryStore) {
	limits := map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassRead:  {Requests: cfg.ReadPerMinute, Window: time.Minute},
		ratelimit.ClassWrite: {Requests: cfg.WritePerMinute, Window: time.Minute},
		ratelimit.ClassScan:  {Requests: cfg.ScanPerMinute, Window: time.Minute},
	}
	memory := ratelimit.NewMemoryStore()
	opts := []ratelimit.Option{
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	}
	if rc == nil {
		return ratelimit.NewLimiter(memory, limits, opts...), memory
	}
	opts = append(opts,
		ratelimit.WithFallback(memory),
		ratelimit.WithBreaker(circuit.New("ratelimit-redis", circuit.WithFailureThreshold(cfg.FailureThreshold))),
	)
	return ratelimit.NewLimiter(ratelimit.NewRedisStore(rc.Client), limits, opts...), memory
}
