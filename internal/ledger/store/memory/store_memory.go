package memory

import (
	"context"
	"maps"
	"sync"

	"seedtrace/internal/ledger"
)

// InMemoryStore keeps events per subject in insertion order.
type InMemoryStore struct {
	mu        sync.RWMutex
	bySubject map[string][]*ledger.Event
	seq       int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bySubject: make(map[string][]*ledger.Event)}
}

func (s *InMemoryStore) Append(ctx context.Context, event *ledger.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	event.Seq = s.seq
	subject := event.SubjectID()
	s.bySubject[subject] = append(s.bySubject[subject], clone(event))
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string) ([]*ledger.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ledger.Event, 0, len(s.bySubject[subjectID]))
	for _, e := range s.bySubject[subjectID] {
		out = append(out, clone(e))
	}
	return out, nil
}

func (s *InMemoryStore) ListBySubjects(ctx context.Context, subjectIDs []string) ([]*ledger.Event, error) {
	seen := make(map[string]struct{}, len(subjectIDs))
	var out []*ledger.Event
	for _, id := range subjectIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		events, _ := s.ListBySubject(ctx, id)
		out = append(out, events...)
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, events := range s.bySubject {
		n += len(events)
	}
	return n, nil
}

func clone(e *ledger.Event) *ledger.Event {
	c := *e
	c.Details = maps.Clone(e.Details)
	return &c
}
