package main

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/askvoice/internal/api"
	"github.com/ashureev/askvoice/internal/config"
	"github.com/ashureev/askvoice/internal/middleware"
	"github.com/ashureev/askvoice/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func newRouter(cfg *config.Config, askHandler *api.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	askHandler.RegisterRoutes(r)

	// Serve embedded voice UI (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	return r
}

// allowedOrigins adds FRONTEND_URL to the configured CORS origins.
func allowedOrigins(cfg *config.Config) []string {
	origins := append([]string(nil), cfg.AllowedOrigins...)
	if cfg.FrontendURL == "" {
		return origins
	}
	for _, o := range origins {
		if o == cfg.FrontendURL {
			return origins
		}
	}
	return append(origins, cfg.FrontendURL)
}
