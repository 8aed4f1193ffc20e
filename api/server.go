/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the ops frontend

SECURITY NOTE:
  Authentication and permission checks live in the surrounding ops platform,
  in front of this service. All endpoints here are unauthenticated.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/run", h.RunManual)
			r.Post("/run/forced", h.RunForced)
			r.Post("/dry-run", h.DryRun)
			r.Get("/runs", h.ListRuns)
		})

		r.Route("/overtime", func(r chi.Router) {
			r.Get("/", h.ListOvertime)
			r.Get("/{id}", h.GetOvertime)
			r.Post("/{id}/decision", h.DecideOvertime)
		})

		r.Get("/absences", h.ListAbsences)
		r.Get("/reports/summary", h.Summary)
	})

	return r
}
