package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/lorrc/service-desk-realtime/internal/adapters/primary/http/middleware"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// RouterConfig holds the options for the local UI API.
type RouterConfig struct {
	Version        string
	AllowedOrigins []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *mw.RateLimiter
}

// NewRouter builds the local UI API around service.
func NewRouter(service ports.RealtimeService, cfg RouterConfig, logger *slog.Logger) http.Handler {
	errorHandler := NewErrorHandler(logger)
	realtimeHandler := NewRealtimeHandler(service, errorHandler, logger)
	healthHandler := NewHealthHandler(service, cfg.Version)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{mw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	r.Route("/api/v1", realtimeHandler.RegisterRoutes)

	return r
}
