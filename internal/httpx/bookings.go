package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wellfront/scheduling-engine/internal/booking"
	"github.com/wellfront/scheduling-engine/internal/tenancy"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

// BookingsHandler serves the booking write path.
type BookingsHandler struct {
	booking *booking.Service
	logger  *logging.Logger
}

// NewBookingsHandler creates the booking handler.
func NewBookingsHandler(svc *booking.Service, logger *logging.Logger) *BookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{booking: svc, logger: logger}
}

// Create books one slot. Losing a slot race returns 409; a saturated
// provider lock returns 503 with Retry-After.
// POST /api/bookings
func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req booking.BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	ctx := tenancy.WithProviderID(r.Context(), req.ProviderID)
	appt, err := h.booking.Book(ctx, req)
	if err != nil {
		writeEngineError(w, h.logger, "booking failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

// CancelRequest is the body for cancelling a booking.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

// Cancel releases a scheduled appointment's time.
// POST /api/bookings/{id}/cancel
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error": "invalid booking id"}`, http.StatusBadRequest)
		return
	}

	var req CancelRequest
	if r.Body != nil {
		// An empty body is a bare cancellation.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Actor == "" {
		req.Actor = "patient"
	}

	appt, err := h.booking.Cancel(r.Context(), id, req.Reason, req.Actor)
	if err != nil {
		writeEngineError(w, h.logger, "cancel failed", err)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}
