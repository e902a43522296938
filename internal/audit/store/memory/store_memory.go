package memory

import (
	"context"
	"sync"
	"time"

	"seedtrace/internal/audit"
	"seedtrace/pkg/platform/sentinel"
)

// InMemoryStore keeps the chain in a slice ordered by id. A single mutex
// covers read-last-then-append.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*audit.Record
	nextID  int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Append(ctx context.Context, build func(prevSignature string) (*audit.Record, error)) (*audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := ""
	if n := len(s.records); n > 0 {
		prev = s.records[n-1].Signature
	}
	rec, err := build(prev)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, clone(rec))
	return rec, nil
}

func (s *InMemoryStore) Previous(_ context.Context, id int64) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].ID < id {
			return clone(s.records[i]), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Range(_ context.Context, afterID, endID int64, limit int) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*audit.Record, 0)
	for _, r := range s.records {
		if r.ID <= afterID {
			continue
		}
		if endID > 0 && r.ID > endID {
			break
		}
		out = append(out, clone(r))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) LastID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return 0, nil
	}
	return s.records[len(s.records)-1].ID, nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType, entityID string, filter audit.TrailFilter) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*audit.Record, 0)
	for _, r := range s.records {
		if r.EntityType == entityType && r.EntityID == entityID && filter.Matches(r) {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListBetween(_ context.Context, from, to time.Time) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*audit.Record, 0)
	for _, r := range s.records {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Overwrite replaces the stored record with the same id. The chain API never
// edits records; this exists so tests can simulate tampering at rest.
func (s *InMemoryStore) Overwrite(rec *audit.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == rec.ID {
			s.records[i] = clone(rec)
			return true
		}
	}
	return false
}

func clone(r *audit.Record) *audit.Record {
	c := *r
	if r.OldValue != nil {
		c.OldValue = append([]byte(nil), r.OldValue...)
	}
	if r.NewValue != nil {
		c.NewValue = append([]byte(nil), r.NewValue...)
	}
	return &c
}
