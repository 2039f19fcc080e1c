package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/service-marketplace/internal/bookingflow"
	httpmiddleware "github.com/wolfman30/service-marketplace/internal/http/middleware"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Bookings           *bookingflow.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	AuthSecret         string
	SubmitRateLimit    float64
	SubmitBurst        int
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Bookings != nil {
		var submitLimit func(http.Handler) http.Handler
		if cfg.SubmitRateLimit > 0 {
			submitLimit = httpmiddleware.RateLimit(cfg.SubmitRateLimit, cfg.SubmitBurst)
		}
		r.Route("/v1", func(v1 chi.Router) {
			v1.Use(middleware.Compress(5))
			v1.Use(httpmiddleware.ActorJWT(cfg.AuthSecret, cfg.Logger))
			cfg.Bookings.Routes(v1, submitLimit)
		})
	}

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := map[string]string{"status": "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp[name] = err.Error()
				resp["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
