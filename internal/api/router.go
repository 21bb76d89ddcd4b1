package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fitwellhq/supportchat/internal/api/middleware"
	"github.com/fitwellhq/supportchat/internal/handlers"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, auth *middleware.Auth, limiter *middleware.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(10 * 1024 * 1024)) // voice captures ride the body

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - the console is served from its own origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/health", h.Health)

	// Console routes (require an operator token)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOperator)

		r.Get("/conversations", h.Roster)
		r.Post("/conversations/{id}/select", h.Select)
		r.Get("/conversations/{id}/stream", h.Stream)
		r.Post("/conversations/{id}/input", h.Input)

		r.Get("/commands", h.ListCommands)
		r.Get("/commands/suggest", h.SuggestCommands)

		// Sends are rate limited per operator
		r.Group(func(r chi.Router) {
			r.Use(limiter.LimitSends)

			r.Post("/conversations/{id}/messages", h.SendText)
			r.Post("/conversations/{id}/recording", h.Recording)
			r.Post("/conversations/{id}/voice/send", h.SendVoice)
			r.Post("/conversations/{id}/commands/{commandID}", h.Choose)
		})
	})

	return r
}
