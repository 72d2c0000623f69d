/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests from the calendar UI dev server

ROUTE GROUPS:
  /api/schedule/*       Day schedule, recurrence
  /api/special-dates/*  Special date flags
  /api/settings         Settings record
  /api/availability/*   Resolver
  /api/payroll          Calculator
  /api/export, import   Backup and restore
  /metrics              Prometheus (when configured)
  /healthz              Liveness

SECURITY NOTE:
  No authentication. The server is meant to listen on loopback only.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/shiftbook/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", h.GetSchedule)
			r.Put("/", h.PutSchedule)
			r.Post("/recurrence", h.ApplyRecurrence)
		})

		r.Get("/title", h.GetTitle)
		r.Put("/title", h.PutTitle)

		r.Route("/special-dates", func(r chi.Router) {
			r.Get("/", h.GetSpecialDates)
			r.Put("/", h.PutSpecialDates)
			r.Post("/{date}/toggle", h.ToggleSpecialDate)
		})

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSettings)

		r.Get("/availability/{date}", h.GetAvailability)
		r.Get("/payroll", h.GetPayroll)

		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Post("/reset", h.Reset)
	})

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	return r
}
