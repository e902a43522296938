package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "seedtrace:ratelimit:"

// RedisStore counts requests in fixed windows shared by every instance.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	now := s.now()
	start := now.Truncate(limit.Window)
	fullKey := redisKeyPrefix + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pipe.PExpire(ctx, fullKey, limit.Window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("incr rate limit %s: %w", key, err)
	}

	count := int(incr.Val())
	res := &Result{
		Allowed: count <= limit.Requests,
		Limit:   limit.Requests,
		ResetAt: start.Add(limit.Window),
	}
	if res.Allowed {
		res.Remaining = limit.Requests - count
	}
	return res, nil
}
