package memory

import (
	"context"
	"maps"
	"sync"

	"seedtrace/internal/identity"
	"seedtrace/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu  sync.RWMutex
	qrs map[string]*identity.QRIdentity
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{qrs: make(map[string]*identity.QRIdentity)}
}

func (s *InMemoryStore) Save(_ context.Context, qr *identity.QRIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.qrs[qr.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.qrs[qr.ID] = clone(qr)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*identity.QRIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qr, ok := s.qrs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(qr), nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.qrs), nil
}

// Update overwrites a stored identity. Tests use it to simulate payloads
// edited at rest.
func (s *InMemoryStore) Update(qr *identity.QRIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrs[qr.ID] = clone(qr)
}

func clone(qr *identity.QRIdentity) *identity.QRIdentity {
	c := *qr
	c.Payload.Metadata = maps.Clone(qr.Payload.Metadata)
	return &c
}
