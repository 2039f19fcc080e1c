// Package drafts persists in-progress booking drafts between requests.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/service-marketplace/internal/booking"
)

// ErrDraftNotFound is returned for unknown or expired drafts.
var ErrDraftNotFound = errors.New("drafts: draft not found")

// Store loads and saves drafts.
type Store interface {
	Get(ctx context.Context, id string) (*booking.Draft, error)
	Save(ctx context.Context, d *booking.Draft) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps drafts as JSON with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("drafts: redis client required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl, prefix: "booking:draft:"}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + strings.TrimSpace(id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*booking.Draft, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("drafts: get %s: %w", id, err)
	}
	var d booking.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("drafts: decode %s: %w", id, err)
	}
	return &d, nil
}

// Save writes the draft and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, d *booking.Draft) error {
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return errors.New("drafts: draft id required")
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("drafts: encode %s: %w", d.ID, err)
	}
	if err := s.client.Set(ctx, s.key(d.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("drafts: save %s: %w", d.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("drafts: delete %s: %w", id, err)
	}
	return nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps drafts in process. Entries are stored as JSON so callers
// never share a draft by pointer.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// WithClock overrides the expiry clock.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, id string) (*booking.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = strings.TrimSpace(id)
	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		return nil, ErrDraftNotFound
	}
	var d booking.Draft
	if err := json.Unmarshal(entry.data, &d); err != nil {
		return nil, fmt.Errorf("drafts: decode %s: %w", id, err)
	}
	return &d, nil
}

func (s *MemoryStore) Save(_ context.Context, d *booking.Draft) error {
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return errors.New("drafts: draft id required")
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("drafts: encode %s: %w", d.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[d.ID] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, strings.TrimSpace(id))
	return nil
}
