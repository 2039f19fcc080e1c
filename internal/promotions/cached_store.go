package promotions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/service-marketplace/pkg/logging"
)

const cacheKeyPrefix = "promotion:"

// CachedStore fronts another Store with a Redis read-through cache. Redis errors
// are logged and fall back to the underlying store.
type CachedStore struct {
	next   Store
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedStore {
	if next == nil {
		panic("promotions: underlying store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{next: next, redis: client, ttl: ttl, logger: logger}
}

func (s *CachedStore) GetPromotion(ctx context.Context, id string) (*Promotion, error) {
	id = strings.TrimSpace(id)
	if s.redis == nil {
		return s.next.GetPromotion(ctx, id)
	}
	key := cacheKeyPrefix + id

	raw, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Promotion
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		s.logger.Warn("discarding corrupt promotion cache entry", "promotion_id", id)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("promotion cache read failed", "promotion_id", id, "error", err)
	}

	p, err := s.next.GetPromotion(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.logger.Warn("promotion cache write failed", "promotion_id", id, "error", err)
		}
	}
	return p, nil
}

// Invalidate drops a cached promotion.
func (s *CachedStore) Invalidate(ctx context.Context, id string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, cacheKeyPrefix+strings.TrimSpace(id)).Err()
}
