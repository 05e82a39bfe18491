package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	mw "github.com/lorrc/service-desk-realtime/internal/adapters/primary/http/middleware"
	"github.com/lorrc/service-desk-realtime/internal/auth"
	"github.com/lorrc/service-desk-realtime/internal/config"
	"github.com/lorrc/service-desk-realtime/internal/core/domain"
)

// RouterDeps holds everything NewRouter wires together.
type RouterDeps struct {
	Config       *config.Config
	Logger       *slog.Logger
	TokenManager *auth.TokenManager
	APIKeys      *auth.APIKeyVerifier
	Dispatcher   EventDispatcher
	Stats        RealtimeStats
	DB           HealthChecker // optional
}

// NewRouter builds the HTTP router with global middleware, health probes,
// the collaborator emit API and introspection. The socket server mounts
// itself on the returned router.
func NewRouter(deps RouterDeps) chi.Router {
	cfg := deps.Config
	logger := deps.Logger

	errorHandler := NewErrorHandler(logger)
	healthHandler := NewHealthHandler(deps.DB, deps.Stats, cfg.App.Version)
	realtimeHandler := NewRealtimeHandler(deps.Stats)

	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))

	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", mw.APIKeyHeader, mw.RequestIDHeader},
			ExposedHeaders:   []string{mw.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if cfg.RateLimit.Enabled {
		limiter := mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		r.Use(limiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	healthHandler.RegisterRoutes(r)

	r.Route("/api/v1/realtime", func(r chi.Router) {
		// Collaborator emit API, enabled only when a key hash is configured
		if deps.APIKeys.Enabled() {
			r.Group(func(r chi.Router) {
				r.Use(mw.APIKeyMiddleware(deps.APIKeys))
				r.Route("/events", NewEmitHandler(deps.Dispatcher, errorHandler, logger).RegisterRoutes)
			})
		} else {
			logger.Warn("EMITTER_API_KEY_HASH not set, collaborator emit API disabled")
		}

		// Introspection
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(deps.TokenManager))
			r.Use(mw.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin))
			realtimeHandler.RegisterRoutes(r)
		})
	})

	return r
}
