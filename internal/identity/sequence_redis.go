package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sequenceKeyPrefix = "seedtrace:lotseq:"
	// A day's counter must outlive the day in every timezone.
	sequenceTTL = 48 * time.Hour
)

// RedisSequence shares lot sequences across instances with INCR.
type RedisSequence struct {
	client redis.Cmdable
}

func NewRedisSequence(client redis.Cmdable) *RedisSequence {
	return &RedisSequence{client: client}
}

func (s *RedisSequence) Next(ctx context.Context, key string) (int64, error) {
	fullKey := sequenceKeyPrefix + key
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pipe.Expire(ctx, fullKey, sequenceTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr lot sequence %s: %w", key, err)
	}
	return incr.Val(), nil
}
