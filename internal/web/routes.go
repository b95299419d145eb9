package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/buemura/surface/internal/web/api"
)

// registerRoutes mounts all route groups on the server's router.
func (s *Server) registerRoutes() {
	h := api.NewHandlers(s.manager, s.log)

	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		// The event stream outlives any request timeout.
		r.Get("/scans/{id}/events", h.StreamEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Post("/scans", h.CreateScan)
			r.Get("/scans", h.ListScans)
			r.Get("/scans/{id}", h.GetScan)
			r.Post("/scans/{id}/cancel", h.CancelScan)
			r.Get("/scans/{id}/report", h.GetScanReport)
			r.Delete("/scans/{id}", h.DeleteScan)
			r.Get("/probes", h.ListProbes)
		})
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
