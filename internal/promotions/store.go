package promotions

import (
	"context"
	"strings"
	"sync"
)

// Store reads promotions by id.
type Store interface {
	GetPromotion(ctx context.Context, id string) (*Promotion, error)
}

// InMemoryStore keeps promotions in a map.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]Promotion
}

func NewInMemoryStore(promos ...Promotion) *InMemoryStore {
	s := &InMemoryStore{items: make(map[string]Promotion)}
	for _, p := range promos {
		s.Put(p)
	}
	return s
}

// Put inserts or replaces a promotion.
func (s *InMemoryStore) Put(p Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.ID] = p
}

func (s *InMemoryStore) GetPromotion(_ context.Context, id string) (*Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}
