package bootstrap

import (
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/service-marketplace/internal/booking"
	"github.com/wolfman30/service-marketplace/internal/catalog"
	appconfig "github.com/wolfman30/service-marketplace/internal/config"
	"github.com/wolfman30/service-marketplace/internal/drafts"
	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/promotions"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

// Stores are the persistence backends the booking flow runs on.
type Stores struct {
	Drafts     drafts.Store
	Catalog    catalog.Repository
	Locations  location.Store
	Promotions promotions.Store
	Bookings   booking.Store
	Guard      booking.CommitGuard
	Memory     bool
}

// Backends are the optional connections stores can be built on.
type Backends struct {
	Pool  *pgxpool.Pool
	SQL   *sql.DB
	Redis *redis.Client
}

// BuildStores picks Postgres and Redis implementations where the connections exist
// and in-memory ones otherwise. USE_MEMORY_STORES forces the in-memory set.
func BuildStores(cfg *appconfig.Config, b Backends, logger *logging.Logger) Stores {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		cfg = &appconfig.Config{}
	}
	memory := cfg.UseMemoryStores || b.Pool == nil || b.SQL == nil
	if memory && !cfg.UseMemoryStores {
		logger.Warn("postgres not configured; using in-memory stores")
	}

	s := Stores{Memory: memory}
	if memory {
		s.Catalog = catalog.NewMemoryRepository()
		s.Locations = location.NewInMemoryStore()
		s.Promotions = promotions.NewInMemoryStore()
		s.Bookings = booking.NewInMemoryStore()
	} else {
		s.Catalog = catalog.NewSQLRepository(b.SQL)
		s.Locations = location.NewPostgresStore(b.Pool)
		s.Promotions = promotions.NewPostgresStore(b.Pool)
		s.Bookings = booking.NewPostgresStore(b.Pool)
	}

	if b.Redis != nil && !cfg.UseMemoryStores {
		s.Drafts = drafts.NewRedisStore(b.Redis, cfg.DraftTTL)
		s.Guard = booking.NewRedisGuard(b.Redis, cfg.CommitLockTTL)
		s.Promotions = promotions.NewCachedStore(s.Promotions, b.Redis, cfg.PromotionCacheTTL, logger)
		return s
	}
	s.Drafts = drafts.NewMemoryStore(orDefault(cfg.DraftTTL, 30*time.Minute))
	s.Guard = booking.NewLocalGuard()
	return s
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
