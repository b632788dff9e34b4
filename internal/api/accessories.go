package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-access/internal/accessory"
)

// SetCharacteristicRequest is the body of PUT /accessories/{uuid}/characteristics.
type SetCharacteristicRequest struct {
	Service        accessory.ServiceType        `json:"service"`
	Subtype        string                       `json:"subtype,omitempty"`
	Characteristic accessory.CharacteristicType `json:"characteristic"`
	Value          any                          `json:"value"`
}

// handleListAccessories returns every registered accessory, optionally
// filtered by owning controller.
func (s *Server) handleListAccessories(w http.ResponseWriter, r *http.Request) {
	controller := r.URL.Query().Get("controller")

	accs := s.host.Accessories()
	out := make([]accessory.Snapshot, 0, len(accs))
	for _, a := range accs {
		if controller != "" && a.Context().ControllerMAC != controller {
			continue
		}
		out = append(out, a.Snapshot())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessories": out,
		"count":       len(out),
	})
}

// handleGetAccessory returns one accessory by UUID.
func (s *Server) handleGetAccessory(w http.ResponseWriter, r *http.Request) {
	acc := s.host.Lookup(chi.URLParam(r, "uuid"))
	if acc == nil {
		writeNotFound(w, "accessory not found")
		return
	}
	writeJSON(w, http.StatusOK, acc.Snapshot())
}

// handleSetCharacteristic writes a characteristic through its set handler.
func (s *Server) handleSetCharacteristic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	var req SetCharacteristicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Service == "" || req.Characteristic == "" {
		writeBadRequest(w, "service and characteristic are required")
		return
	}

	err := s.host.SetValue(id, req.Service, req.Subtype, req.Characteristic, req.Value)
	switch {
	case err == nil:
	case errors.Is(err, accessory.ErrAccessoryNotFound),
		errors.Is(err, accessory.ErrServiceNotFound),
		errors.Is(err, accessory.ErrCharacteristicNotFound):
		writeNotFound(w, err.Error())
		return
	case errors.Is(err, accessory.ErrReadOnly):
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, err.Error())
		return
	case errors.Is(err, accessory.ErrInvalidValue):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		return
	default:
		s.logger.Warn("characteristic write failed",
			"accessory", id,
			"service", req.Service,
			"characteristic", req.Characteristic,
			"error", err,
		)
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}

	acc := s.host.Lookup(id)
	if acc == nil {
		writeNotFound(w, "accessory not found")
		return
	}
	writeJSON(w, http.StatusOK, acc.Snapshot())
}
