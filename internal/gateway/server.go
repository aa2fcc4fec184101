package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required. Root doubles as the health endpoint for
	// platforms that probe "/".
	r.Get("/", g.handleHealth())
	r.Get("/health", g.handleHealth())

	if g.metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.metrics.Handler())
	}

	// Webhooks — validated per source by the dispatcher.
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	// Admin endpoints — not mounted unless auth is configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/sessions", g.handleListSessions())
				r.Delete("/sessions/{channel}/{chat}", g.handleDeleteSession())
			})
		})
	}

	return r
}
