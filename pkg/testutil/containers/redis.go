//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"seedtrace/internal/platform/config"
	platformredis "seedtrace/internal/platform/redis"
)

// keyspace is the prefix every seedtrace key lives under: lot-number
// sequences and rate-limit windows.
const keyspace = "seedtrace:*"

// RedisContainer is a Redis instance reached through the same client setup
// the server uses.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts Redis and connects with platform/redis defaults.
// The shared Manager owns its lifetime, so no cleanup is registered here.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	client, err := platformredis.New(ctx, config.RedisConfig{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect to redis: %v", err)
	}

	return &RedisContainer{Container: container, URL: url, Client: client.Client}
}

// Reset drops the seedtrace keyspace so suites sharing the container start
// from empty sequences and windows.
func (r *RedisContainer) Reset(ctx context.Context) error {
	iter := r.Client.Scan(ctx, 0, keyspace, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// TTL returns the remaining lifetime of the single key matching pattern.
func (r *RedisContainer) TTL(ctx context.Context, pattern string) (time.Duration, error) {
	keys, err := r.Client.Keys(ctx, pattern).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) != 1 {
		return 0, redis.Nil
	}
	return r.Client.PTTL(ctx, keys[0]).Result()
}
