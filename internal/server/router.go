package server

import (
	"net/http"

	"github.com/cloo-solutions/studybuddy/internal/api/handlers"
	"github.com/cloo-solutions/studybuddy/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// maxJSONBodyBytes bounds non-upload request bodies; uploads are limited by
// the document handler itself.
const maxJSONBodyBytes int64 = 1 << 20

type RouterConfig struct {
	SessionValidator middleware.SessionValidator
	HealthHandler    *handlers.HealthHandler
	AuthHandler      *handlers.AuthHandler
	DocumentHandler  *handlers.DocumentHandler
	WebHandler       *handlers.WebHandler
	DocumentChunks   *handlers.ChunksHandler
	WebChunks        *handlers.ChunksHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/health", cfg.HealthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(maxJSONBodyBytes))

		r.Post("/api/register", cfg.AuthHandler.Register)
		r.Post("/api/login", cfg.AuthHandler.Login)
		r.Post("/logout", cfg.AuthHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(cfg.SessionValidator))

		r.Post("/document/upload", cfg.DocumentHandler.Upload)
		r.Post("/pdf/upload", cfg.DocumentHandler.Upload)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(maxJSONBodyBytes))

			r.Post("/document/ask", cfg.DocumentHandler.Ask)
			r.Post("/pdf/ask", cfg.DocumentHandler.Ask)
			r.Get("/document/chunks", cfg.DocumentChunks.List)

			r.Post("/web/scrape", cfg.WebHandler.Scrape)
			r.Post("/web/ask", cfg.WebHandler.Ask)
			r.Post("/api/web/ask", cfg.WebHandler.Ask)
			r.Get("/web/chunks", cfg.WebChunks.List)
		})
	})

	return r
}
