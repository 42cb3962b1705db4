package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Account linking
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", s.handleLoginForm)
		r.Post("/login", s.handleLogin)
		r.Post("/token", s.handleToken)
	})

	// Smart-home skill endpoints
	r.Route("/v1.0", func(r chi.Router) {
		r.Head("/", s.handleProbe)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/user/unlink", s.handleUnlink)
			r.Get("/user/devices", s.handleUserDevices)
			r.Post("/user/devices/query", s.handleDevicesQuery)
			r.Post("/user/devices/action", s.handleDevicesAction)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
