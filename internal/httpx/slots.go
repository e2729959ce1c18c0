package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wellfront/scheduling-engine/internal/schedule"
	"github.com/wellfront/scheduling-engine/internal/tenancy"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

// SlotsHandler serves read-only provider availability.
type SlotsHandler struct {
	schedule *schedule.Service
	logger   *logging.Logger
}

// NewSlotsHandler creates the availability read handler.
func NewSlotsHandler(svc *schedule.Service, logger *logging.Logger) *SlotsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SlotsHandler{schedule: svc, logger: logger}
}

// GetSlots returns the provider's open bookable slots over a range.
// GET /api/providers/{providerID}/slots?from=...&to=...&duration=30&buffer=10&lead=60
func (h *SlotsHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		http.Error(w, `{"error": "from and to must be RFC3339 timestamps"}`, http.StatusBadRequest)
		return
	}

	q := schedule.SlotQuery{
		ProviderID:          providerID,
		RangeStart:          from,
		RangeEnd:            to,
		SlotDurationMinutes: intParam(r, "duration"),
		BufferMinutes:       intParam(r, "buffer"),
		MinLeadMinutes:      intParam(r, "lead"),
	}

	slots, err := h.schedule.GetAvailableSlots(r.Context(), q)
	if err != nil {
		writeEngineError(w, h.logger, "slot query failed", err)
		return
	}
	if slots == nil {
		slots = []schedule.Slot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider_id": providerID,
		"from":        from,
		"to":          to,
		"slots":       slots,
		"count":       len(slots),
	})
}

// ListAppointments returns the provider's appointments over a range,
// optionally filtered by status.
// GET /api/providers/{providerID}/appointments?from=...&to=...&status=scheduled,completed
func (h *SlotsHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		http.Error(w, `{"error": "from and to must be RFC3339 timestamps"}`, http.StatusBadRequest)
		return
	}

	var statuses []schedule.AppointmentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status, err := schedule.ParseAppointmentStatus(strings.TrimSpace(s))
			if err != nil {
				http.Error(w, `{"error": "unknown status filter"}`, http.StatusBadRequest)
				return
			}
			statuses = append(statuses, status)
		}
	}

	appts, err := h.schedule.ListAppointments(r.Context(), providerID, from, to, statuses)
	if err != nil {
		writeEngineError(w, h.logger, "appointment list failed", err)
		return
	}
	if appts == nil {
		appts = []schedule.Appointment{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider_id":  providerID,
		"appointments": appts,
		"count":        len(appts),
	})
}

// parseRange reads the required from/to query params.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// intParam reads an optional integer query param, zero when absent. The
// services treat zero as "use the provider default"; negative values flow
// through so query validation can reject them.
func intParam(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}
