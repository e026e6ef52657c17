package router

import (
	"net/http"

	"github.com/ArthurPoncin/google-ai-gen/internal/handler"
	"github.com/ArthurPoncin/google-ai-gen/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	GameHandler    *handler.GameHandler
	AuthMiddleware func(http.Handler) http.Handler
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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
			}

			if cfg.GameHandler != nil {
				r.Route("/game", func(r chi.Router) {
					r.Get("/state", cfg.GameHandler.GetState)
					r.Get("/leaderboard", cfg.GameHandler.GetLeaderboard)
					r.Post("/generate", cfg.GameHandler.Generate)
					r.Post("/bonus/claim", cfg.GameHandler.ClaimBonus)

					r.Route("/items/{id}", func(r chi.Router) {
						r.Post("/resell", cfg.GameHandler.Resell)
						r.Post("/buy", cfg.GameHandler.Buy)
						r.Post("/favorite", cfg.GameHandler.ToggleFavorite)
					})

					r.Route("/settings", func(r chi.Router) {
						r.Post("/theme", cfg.GameHandler.ToggleTheme)
						r.Post("/mute", cfg.GameHandler.ToggleMute)
						r.Put("/name", cfg.GameHandler.SetName)
					})
				})
			}
		})
	})

	return r
}
