package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/nerrad567/gray-logic-it600/internal/bridges/salus"
)

// corsMaxAge is how long browsers may cache a preflight response, in seconds.
const corsMaxAge = 86400

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(cors.Handler(s.corsOptions()))
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{kind}", s.handleListDevicesByKind)
			r.Get("/{kind}/{id}", s.handleGetDevice)
			r.Post("/{kind}/{id}/commands", s.handleCommand)
		})

		r.Get("/catalog", s.handleListCatalog)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// corsOptions maps the configured CORS lists onto go-chi/cors. Empty lists
// fall back to permissive defaults suitable for a LAN dashboard.
func (s *Server) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,
		AllowedMethods: s.cfg.CORS.AllowedMethods,
		AllowedHeaders: s.cfg.CORS.AllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         corsMaxAge,
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = []string{"Accept", "Content-Type", "X-Request-ID"}
	}
	return opts
}

// handleHealth returns the bridge health message. An unhealthy bridge
// answers 503 so load balancers and probes can act on the status code.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.bridge == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": s.version,
		})
		return
	}

	msg := s.bridge.Health()
	status := http.StatusOK
	if msg.Status == salus.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, msg)
}
