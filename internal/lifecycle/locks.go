package lifecycle

import (
	"context"
	"sync"
	"time"

	dErrors "seedtrace/pkg/domain-errors"
)

// numEntityShards spreads per-entity mutations over a fixed set of mutexes.
// Two ids may share a shard; that only costs contention, never correctness.
const numEntityShards = 128

// defaultLockTimeout bounds how long a mutation may hold its shard.
const defaultLockTimeout = 5 * time.Second

// entityLocks serializes read-check-write sequences per lot or plant inside
// one process. Optimistic versions in the store catch races across
// processes.
type entityLocks struct {
	shards  [numEntityShards]sync.Mutex
	timeout time.Duration
}

func (l *entityLocks) withLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "mutation aborted: context cancelled")
	}

	timeout := l.timeout
	if timeout == 0 {
		timeout = defaultLockTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashEntityID(id) % numEntityShards
	l.shards[shard].Lock()
	defer l.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "mutation aborted: context cancelled")
	}
	return fn(ctx)
}

// hashEntityID is FNV-1a.
func hashEntityID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
