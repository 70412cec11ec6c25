// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/stigmer/stigmer/config"
	"github.com/stigmer/stigmer/pkg/api/handlers"
	"github.com/stigmer/stigmer/pkg/api/middleware"
	"github.com/stigmer/stigmer/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Board handles signal, query, and pattern endpoints
	Board *handlers.BoardHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))

	if cfg.Server.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			cfg.Server.RateLimit.RequestsPerSecond,
			cfg.Server.RateLimit.Burst,
		)
		r.Use(middleware.RateLimit(limiter))
	}

	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Board != nil {
			r.Route("/signals", func(r chi.Router) {
				r.Post("/", handlers.Board.EmitSignal)
				r.Get("/", handlers.Board.ListSignals)
				r.Get("/{id}", handlers.Board.GetSignal)
				r.Post("/{id}/amplify", handlers.Board.AmplifySignal)
				r.Post("/{id}/resolve", handlers.Board.ResolveSignal)
			})

			r.Post("/evaporate", handlers.Board.Evaporate)
			r.Get("/landscape", handlers.Board.Landscape)
			r.Get("/trails", handlers.Board.Trails)
			r.Get("/stats", handlers.Board.Stats)
			r.Get("/patterns", handlers.Board.Patterns)
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}
}
