package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DRAFT_TTL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("BUSINESS_TIMEZONE", "")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "")
	t.Setenv("PROCESSED_EVENT_RETENTION", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.DraftTTL != 30*time.Minute {
		t.Fatalf("expected default draft ttl, got %s", cfg.DraftTTL)
	}
	if cfg.CommitLockTTL != 30*time.Second {
		t.Fatalf("expected default commit lock ttl, got %s", cfg.CommitLockTTL)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location by default")
	}
	if cfg.OutboxMaxAttempts != 10 || cfg.ProcessedRetention != 7*24*time.Hour {
		t.Fatalf("unexpected outbox defaults %d/%s", cfg.OutboxMaxAttempts, cfg.ProcessedRetention)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("DRAFT_TTL", "45m")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("RATE_LIMIT_BURST", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("BUSINESS_TIMEZONE", "America/New_York")
	t.Setenv("DATABASE_MAX_CONNS", "4")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "3")
	t.Setenv("PROCESSED_EVENT_RETENTION", "24h")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.DraftTTL != 45*time.Minute {
		t.Fatalf("expected draft ttl override, got %s", cfg.DraftTTL)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if cfg.RateLimitRPS != 0.5 || cfg.RateLimitBurst != 2 {
		t.Fatalf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected CORS origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Location().String() != "America/New_York" {
		t.Fatalf("expected timezone override, got %s", cfg.Location())
	}
	if cfg.DatabaseMaxConns != 4 {
		t.Fatalf("expected max conns override, got %d", cfg.DatabaseMaxConns)
	}
	if cfg.OutboxMaxAttempts != 3 || cfg.ProcessedRetention != 24*time.Hour {
		t.Fatalf("unexpected outbox overrides %d/%s", cfg.OutboxMaxAttempts, cfg.ProcessedRetention)
	}
}

func TestLocationFallsBackOnUnknownZone(t *testing.T) {
	cfg := &Config{BusinessTimezone: "Mars/Olympus"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
}
