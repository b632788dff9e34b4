package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-access/internal/bridges/unifi"
	"github.com/nerrad567/gray-logic-access/internal/featureopt"
)

// handleListControllers returns the status of every configured controller.
func (s *Server) handleListControllers(w http.ResponseWriter, _ *http.Request) {
	out := make([]unifi.Status, 0, len(s.controllers))
	for _, c := range s.controllers {
		out = append(out, c.Status())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"controllers": out,
		"count":       len(out),
	})
}

// handleResetController drops the controller session and refreshes it.
// The path accepts the controller MAC in any separator style, or its name
// for a controller that has not connected yet.
func (s *Server) handleResetController(w http.ResponseWriter, r *http.Request) {
	c := s.findController(chi.URLParam(r, "mac"))
	if c == nil {
		writeNotFound(w, "controller not found")
		return
	}

	err := c.ResetConnection(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, unifi.ErrNotConfigured):
		writeError(w, http.StatusConflict, ErrCodeConflict, "controller is disabled")
		return
	case errors.Is(err, unifi.ErrNotRunning):
		writeError(w, http.StatusConflict, ErrCodeConflict, "controller is not running")
		return
	default:
		s.logger.Warn("controller reset failed", "controller", c.Name(), "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
		return
	}

	s.logger.Info("controller connection reset", "controller", c.Name())
	writeJSON(w, http.StatusOK, c.Status())
}

func (s *Server) findController(key string) Controller {
	id := featureopt.ID(key)
	for _, c := range s.controllers {
		if mac := c.MAC(); mac != "" && mac == id {
			return c
		}
	}
	for _, c := range s.controllers {
		if strings.EqualFold(c.Name(), key) {
			return c
		}
	}
	return nil
}
