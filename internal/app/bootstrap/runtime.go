package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/service-marketplace/internal/config"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

// RedisOptions maps the Redis settings onto client options. It returns nil when
// no address is configured.
func RedisOptions(cfg *appconfig.Config) *redis.Options {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:         strings.TrimSpace(cfg.RedisAddr),
		Password:     cfg.RedisPassword,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// BuildRedisClient returns a client for drafts, commit locks and the promotion
// cache, or nil when Redis is not configured. With verify set an unreachable
// server also yields nil and the caller falls back to in-process stores.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	opts := RedisOptions(cfg)
	if opts == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if ctx == nil {
		ctx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable; drafts and commit locks stay in process", "addr", opts.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// PostgresConfig parses DATABASE_URL and applies pool sizing. It returns nil
// without error when no URL is configured.
func PostgresConfig(cfg *appconfig.Config) (*pgxpool.Config, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	poolCfg, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse database url: %w", err)
	}
	if cfg.DatabaseMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DatabaseMaxConns)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	return poolCfg, nil
}

// BuildPostgresPool connects and pings. A nil pool with a nil error means
// Postgres is not configured.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	poolCfg, err := PostgresConfig(cfg)
	if err != nil || poolCfg == nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildSQLDB exposes the pool through database/sql for the catalog repository.
func BuildSQLDB(pool *pgxpool.Pool) *sql.DB {
	if pool == nil {
		return nil
	}
	return stdlib.OpenDBFromPool(pool)
}
