// Package httpx holds the HTTP handlers of the scheduling API. Handlers
// translate between the wire and the schedule/booking services; all policy
// lives in the services.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wellfront/scheduling-engine/internal/schedule"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeEngineError maps the engine's sentinel errors onto HTTP statuses.
// Validation failures carry their message to the client; store failures do
// not leak details past the log.
func writeEngineError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	switch {
	case errors.Is(err, schedule.ErrInvalidRange), errors.Is(err, schedule.ErrInvalidTemplate):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err))
	case errors.Is(err, schedule.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err))
	case errors.Is(err, schedule.ErrSlotUnavailable), errors.Is(err, schedule.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody(err))
	case errors.Is(err, schedule.ErrLockTimeout):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err))
	case errors.Is(err, schedule.ErrUpstreamUnavailable):
		logger.Error(op, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream unavailable"})
	default:
		logger.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func errorBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
