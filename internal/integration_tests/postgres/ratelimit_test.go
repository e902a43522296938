//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedtrace/internal/ratelimit"
	"seedtrace/pkg/testutil/containers"
)

func TestRedisRateLimitIsSharedAcrossInstances(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.Reset(ctx))

	limits := map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassScan: {Requests: 3, Window: time.Hour},
	}
	a := ratelimit.NewLimiter(ratelimit.NewRedisStore(rc.Client), limits)
	b := ratelimit.NewLimiter(ratelimit.NewRedisStore(rc.Client), limits)

	for i, l := range []*ratelimit.Limiter{a, b, a} {
		res, degraded, err := l.Check(ctx, ratelimit.ClassScan, "198.51.100.7")
		require.NoError(t, err)
		assert.False(t, degraded)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, _, err := b.Check(ctx, ratelimit.ClassScan, "198.51.100.7")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	ttl, err := rc.TTL(ctx, "seedtrace:ratelimit:scan:198.51.100.7:*")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
