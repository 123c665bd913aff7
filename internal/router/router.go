package router

import (
	"zoho-mirror-api/internal/handler"
	"zoho-mirror-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler      *handler.Handler
	ZohoHandler  *handler.ZohoHandler
	SyncHandler  *handler.SyncHandler
	RunsHandler  *handler.RunsHandler
	AdminHandler *handler.AdminHandler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Unified status endpoint for uptime monitoring
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check endpoints
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Zoho connection endpoints
		if cfg.ZohoHandler != nil {
			r.Route("/zoho", func(r chi.Router) {
				r.Get("/auth-url", cfg.ZohoHandler.AuthURL)
				r.Get("/callback", cfg.ZohoHandler.Callback)
				r.Get("/settings", cfg.ZohoHandler.Settings)
				r.Put("/settings", cfg.ZohoHandler.UpdateSettings)
				r.Post("/connect", cfg.ZohoHandler.Connect)
			})
		}

		// Sync trigger endpoints
		if cfg.SyncHandler != nil {
			r.Route("/sync", func(r chi.Router) {
				r.Post("/items", cfg.SyncHandler.SyncItems)
				r.Post("/orders", cfg.SyncHandler.SyncOrders)
				if cfg.RunsHandler != nil {
					r.Get("/runs", cfg.RunsHandler.List)
				}
			})
		}

		// Admin endpoints
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Get("/stats", cfg.AdminHandler.Stats)
			})
		}
	})

	return r
}
