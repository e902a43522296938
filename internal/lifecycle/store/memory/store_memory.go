package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"seedtrace/internal/lifecycle"
	"seedtrace/pkg/domain"
	"seedtrace/pkg/platform/sentinel"
)

// InMemoryStore keeps lots and plants in maps guarded by one lock. Values
// are copied on the way in and out.
type InMemoryStore struct {
	mu          sync.RWMutex
	lots        map[string]*lifecycle.Lot
	lotNumbers  map[string]string
	plants      map[string]*lifecycle.Plant
	plantTags   map[string]string
	plantsByLot map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		lots:        make(map[string]*lifecycle.Lot),
		lotNumbers:  make(map[string]string),
		plants:      make(map[string]*lifecycle.Plant),
		plantTags:   make(map[string]string),
		plantsByLot: make(map[string][]string),
	}
}

func (s *InMemoryStore) CreateLot(ctx context.Context, lot *lifecycle.Lot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lots[lot.ID]; ok {
		return fmt.Errorf("lot %s: %w", lot.ID, sentinel.ErrAlreadyUsed)
	}
	if _, ok := s.lotNumbers[lot.LotNumber]; ok {
		return fmt.Errorf("lot number %s: %w", lot.LotNumber, sentinel.ErrAlreadyUsed)
	}
	s.lots[lot.ID] = cloneLot(lot)
	s.lotNumbers[lot.LotNumber] = lot.ID
	return nil
}

func (s *InMemoryStore) FindLot(_ context.Context, id string) (*lifecycle.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lot, ok := s.lots[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneLot(lot), nil
}

func (s *InMemoryStore) FindLotByNumber(ctx context.Context, lotNumber string) (*lifecycle.Lot, error) {
	s.mu.RLock()
	id, ok := s.lotNumbers[lotNumber]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindLot(ctx, id)
}

func (s *InMemoryStore) UpdateLot(ctx context.Context, lot *lifecycle.Lot, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.lots[lot.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return sentinel.ErrStaleVersion
	}
	s.lots[lot.ID] = cloneLot(lot)
	return nil
}

func (s *InMemoryStore) SearchLots(_ context.Context, filter lifecycle.LotFilter, offset, limit int) ([]*lifecycle.Lot, int, error) {
	s.mu.RLock()
	matched := make([]*lifecycle.Lot, 0)
	for _, lot := range s.lots {
		if matches(filter, lot) {
			matched = append(matched, lot)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if offset >= total {
		return []*lifecycle.Lot{}, total, nil
	}
	end := min(offset+limit, total)
	page := make([]*lifecycle.Lot, 0, end-offset)
	for _, lot := range matched[offset:end] {
		page = append(page, cloneLot(lot))
	}
	return page, total, nil
}

func matches(f lifecycle.LotFilter, lot *lifecycle.Lot) bool {
	if f.Species != "" && !strings.EqualFold(f.Species, lot.Species) {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(lot.Location.Name), strings.ToLower(f.Location)) {
		return false
	}
	if f.Status != "" && f.Status != lot.Status {
		return false
	}
	if f.Type != "" && f.Type != lot.Type {
		return false
	}
	if !f.CreatedFrom.IsZero() && lot.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && !lot.CreatedAt.Before(f.CreatedTo) {
		return false
	}
	return true
}

func (s *InMemoryStore) CountLots(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lots), nil
}

func (s *InMemoryStore) CreatePlant(ctx context.Context, plant *lifecycle.Plant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plants[plant.ID]; ok {
		return fmt.Errorf("plant %s: %w", plant.ID, sentinel.ErrAlreadyUsed)
	}
	if _, ok := s.plantTags[plant.Tag]; ok {
		return fmt.Errorf("plant tag %s: %w", plant.Tag, sentinel.ErrAlreadyUsed)
	}
	s.plants[plant.ID] = clonePlant(plant)
	s.plantTags[plant.Tag] = plant.ID
	s.plantsByLot[plant.LotID] = append(s.plantsByLot[plant.LotID], plant.ID)
	return nil
}

func (s *InMemoryStore) FindPlant(_ context.Context, id string) (*lifecycle.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plant, ok := s.plants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePlant(plant), nil
}

func (s *InMemoryStore) UpdatePlant(ctx context.Context, plant *lifecycle.Plant, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.plants[plant.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return sentinel.ErrStaleVersion
	}
	s.plants[plant.ID] = clonePlant(plant)
	return nil
}

func (s *InMemoryStore) ListPlantsByLot(_ context.Context, lotID string) ([]*lifecycle.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*lifecycle.Plant, 0, len(s.plantsByLot[lotID]))
	for _, id := range s.plantsByLot[lotID] {
		out = append(out, clonePlant(s.plants[id]))
	}
	return out, nil
}

func (s *InMemoryStore) CountPlants(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plants), nil
}

func (s *InMemoryStore) CountPlantsByStage(_ context.Context) (map[domain.LifecycleStage]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.LifecycleStage]int)
	for _, p := range s.plants {
		counts[p.Stage]++
	}
	return counts, nil
}

func cloneLot(lot *lifecycle.Lot) *lifecycle.Lot {
	c := *lot
	c.Metadata = maps.Clone(lot.Metadata)
	return &c
}

func clonePlant(p *lifecycle.Plant) *lifecycle.Plant {
	c := *p
	return &c
}
