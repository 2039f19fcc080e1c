package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/service-marketplace/internal/api/router"
	"github.com/wolfman30/service-marketplace/internal/app/bootstrap"
	"github.com/wolfman30/service-marketplace/internal/booking"
	"github.com/wolfman30/service-marketplace/internal/bookingflow"
	appconfig "github.com/wolfman30/service-marketplace/internal/config"
	"github.com/wolfman30/service-marketplace/internal/events"
	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/observability/metrics"
	"github.com/wolfman30/service-marketplace/internal/pricing"
	"github.com/wolfman30/service-marketplace/internal/promotions"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

const outboxConsumer = "booking-log"

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting service-marketplace API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}
	backends := bootstrap.Backends{
		Pool:  pool,
		SQL:   bootstrap.BuildSQLDB(pool),
		Redis: bootstrap.BuildRedisClient(ctx, cfg, logger, true),
	}
	if backends.Redis != nil {
		defer backends.Redis.Close()
	}

	metricsHandler, bookingMetrics := setupMetrics()
	app := buildApp(cfg, backends, bookingMetrics, logger)

	if app.deliverer != nil {
		go app.deliverer.Start(ctx)
	}
	if app.ledger != nil {
		go pruneLedger(ctx, app.ledger, cfg.ProcessedRetention, logger)
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		Bookings:           app.handler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthSecret:         cfg.AuthJWTSecret,
		SubmitRateLimit:    cfg.RateLimitRPS,
		SubmitBurst:        cfg.RateLimitBurst,
		HealthChecks:       healthChecks(backends),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type app struct {
	service   *bookingflow.Service
	handler   *bookingflow.Handler
	deliverer *events.Deliverer
	ledger    *events.ProcessedStore
	stores    bootstrap.Stores
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics) {
	registry := prometheus.NewRegistry()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewBookingMetrics(registry)
}

// buildApp wires stores, pricing and the commit coordinator into the booking flow.
// The outbox is only available on Postgres.
func buildApp(cfg *appconfig.Config, backends bootstrap.Backends, m *metrics.BookingMetrics, logger *logging.Logger) app {
	stores := bootstrap.BuildStores(cfg, backends, logger)

	engine := promotions.NewEngine(stores.Promotions, logger).WithObserver(m)
	calc := pricing.NewCalculator(engine)
	resolver := location.NewResolver(stores.Locations, logger)

	coordinator := booking.NewCoordinator(stores.Locations, stores.Bookings, logger).
		WithGuard(stores.Guard).
		WithMetrics(m)

	var (
		deliverer *events.Deliverer
		ledger    *events.ProcessedStore
	)
	if backends.Pool != nil && !stores.Memory {
		outbox := events.NewOutboxStore(backends.Pool)
		coordinator = coordinator.WithNotifier(events.NewOutboxNotifier(outbox))

		ledger = events.NewProcessedStore(backends.Pool)
		handler := events.NewDedupHandler(events.NewLogHandler(logger), ledger, outboxConsumer)
		deliverer = events.NewDeliverer(outbox, handler, logger).
			WithBatchSize(int32(cfg.OutboxBatchSize)).
			WithMaxAttempts(int32(cfg.OutboxMaxAttempts)).
			WithInterval(cfg.OutboxPollInterval).
			WithMetrics(m)
	}

	svc := bookingflow.NewService(stores.Drafts, stores.Catalog, resolver, calc, coordinator, logger).
		WithGuard(stores.Guard).
		WithTimezone(cfg.Location())

	return app{
		service:   svc,
		handler:   bookingflow.NewHandler(svc, logger),
		deliverer: deliverer,
		ledger:    ledger,
		stores:    stores,
	}
}

// pruneLedger trims the processed-event ledger once an hour.
func pruneLedger(ctx context.Context, ledger *events.ProcessedStore, retention time.Duration, logger *logging.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := ledger.Prune(ctx, retention)
			if err != nil {
				logger.Warn("processed event prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned processed events", "rows", n)
			}
		}
	}
}

func healthChecks(b bootstrap.Backends) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if b.Pool != nil {
		checks["postgres"] = b.Pool.Ping
	}
	if b.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return b.Redis.Ping(ctx).Err()
		}
	}
	return checks
}
