package location

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store reads and writes customer and business locations.
type Store interface {
	GetCustomerLocation(ctx context.Context, id string) (*Record, error)
	GetBusinessLocation(ctx context.Context, id string) (*Record, error)
	PrimaryBusinessLocation(ctx context.Context, businessID string) (*Record, error)
	LatestActiveCustomerLocation(ctx context.Context, customerID string) (*Record, error)
	CreateCustomerLocation(ctx context.Context, req CreateCustomerLocationRequest) (*Record, error)
}

// InMemoryStore is a Store used in development and tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	customers map[string]*Record
	business  map[string]*Record
	now       func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		customers: make(map[string]*Record),
		business:  make(map[string]*Record),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PutBusinessLocation seeds a business location; OwnerID is the business id.
func (s *InMemoryStore) PutBusinessLocation(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.business[rec.ID] = &rec
}

// PutCustomerLocation seeds a customer location; OwnerID is the customer id.
func (s *InMemoryStore) PutCustomerLocation(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.customers[rec.ID] = &rec
}

func (s *InMemoryStore) GetCustomerLocation(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.customers[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *InMemoryStore) GetBusinessLocation(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.business[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *InMemoryStore) PrimaryBusinessLocation(_ context.Context, businessID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var candidates []*Record
	for _, rec := range s.business {
		if rec.OwnerID == businessID && rec.IsActive {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].IsPrimary != candidates[j].IsPrimary {
			return candidates[i].IsPrimary
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	out := *candidates[0]
	return &out, nil
}

func (s *InMemoryStore) LatestActiveCustomerLocation(_ context.Context, customerID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Record
	for _, rec := range s.customers {
		if rec.OwnerID != customerID || !rec.IsActive {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s *InMemoryStore) CreateCustomerLocation(_ context.Context, req CreateCustomerLocationRequest) (*Record, error) {
	addr := req.Address.Normalize()
	if !addr.Complete() {
		return nil, ErrIncompleteAddress
	}
	rec := &Record{
		ID:        uuid.NewString(),
		OwnerID:   strings.TrimSpace(req.CustomerID),
		Address:   addr,
		IsActive:  true,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	s.customers[rec.ID] = rec
	s.mu.Unlock()
	out := *rec
	return &out, nil
}

// Count reports stored customer locations; tests use it to detect orphans.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.customers)
}
