package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-access/internal/bridges/unifi"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/metrics"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(metrics.Middleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/accessories", func(r chi.Router) {
			r.Get("/", s.handleListAccessories)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Get("/", s.handleGetAccessory)
				r.Put("/characteristics", s.handleSetCharacteristic)
			})
		})

		r.Route("/controllers", func(r chi.Router) {
			r.Get("/", s.handleListControllers)
			r.Post("/{mac}/reset", s.handleResetController)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	MQTTConnected *bool  `json:"mqtt_connected,omitempty"`
	Controllers   int    `json:"controllers"`
	Connected     int    `json:"controllers_connected"`
	Accessories   int    `json:"accessories"`
	WSClients     int    `json:"websocket_clients"`
}

// handleHealth returns the server health status. The bridge is degraded
// when an enabled controller is not connected or the broker is down.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Controllers:   len(s.controllers),
		Accessories:   len(s.host.Accessories()),
		WSClients:     s.hub.ClientCount(),
	}

	for _, c := range s.controllers {
		switch c.Status().State {
		case unifi.StateConnected:
			resp.Connected++
		case unifi.StateDisabled:
		default:
			resp.Status = "degraded"
		}
	}

	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		resp.MQTTConnected = &connected
		if !connected {
			resp.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
