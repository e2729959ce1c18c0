package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"

	"github.com/wellfront/scheduling-engine/internal/audit"
	"github.com/wellfront/scheduling-engine/internal/http/middleware"
	"github.com/wellfront/scheduling-engine/internal/schedule"
	"github.com/wellfront/scheduling-engine/internal/tenancy"
)

// StatusUpdateRequest is the body for an admin status transition.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateAppointmentStatus marks an appointment completed or no-show.
// Cancellation goes through the public cancel endpoint.
// POST /admin/appointments/{id}/status
func (h *AdminHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
		return
	}

	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	actor := "admin"
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		actor = claims.Subject
	}

	var appt *schedule.Appointment
	switch req.Status {
	case string(schedule.StatusCompleted):
		appt, err = h.booking.MarkCompleted(r.Context(), id, actor)
	case string(schedule.StatusNoShow):
		appt, err = h.booking.MarkNoShow(r.Context(), id, actor)
	default:
		http.Error(w, `{"error": "status must be completed or no_show"}`, http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		writeEngineError(w, h.logger, "status update failed", err)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

// Audit returns the provider's booking audit entries, newest first.
// GET /admin/providers/{providerID}/audit?actions=...&since=...&until=...&limit=50
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}
	if h.audit == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "audit trail not configured"})
		return
	}

	filter := audit.Filter{ProviderID: providerID, Limit: 50}
	q := r.URL.Query()
	if raw := q.Get("appointment_id"); raw != "" {
		apptID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, `{"error": "invalid appointment id"}`, http.StatusBadRequest)
			return
		}
		filter.AppointmentID = apptID
	}
	if raw := q.Get("actions"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			filter.Actions = append(filter.Actions, audit.Action(strings.TrimSpace(a)))
		}
	}
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error": "since must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		filter.Since = t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error": "until must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		filter.Until = t
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}

	entries, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		writeEngineError(w, h.logger, "audit query failed", err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider_id": providerID,
		"entries":     entries,
		"count":       len(entries),
	})
}

// Dashboard returns per-provider booking counts plus a snapshot of the
// engine's own metrics.
// GET /admin/dashboard/bookings?since=...
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, `{"error": "since must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		since = t
	}

	var providers []schedule.BookingStats
	if h.stats != nil {
		var err error
		providers, err = h.stats.DashboardStats(r.Context(), since)
		if err != nil {
			writeEngineError(w, h.logger, "dashboard stats failed", err)
			return
		}
	}
	if providers == nil {
		providers = []schedule.BookingStats{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"since":     since,
		"providers": providers,
		"engine":    h.snapshotEngine(),
	})
}

// engineSnapshot condenses the engine's Prometheus series for the
// dashboard without clients having to scrape /metrics.
type engineSnapshot struct {
	SlotQueries    map[string]float64 `json:"slot_queries"`
	Bookings       map[string]float64 `json:"bookings"`
	ResolveLatency latencySummary     `json:"resolve_latency"`
	LockWait       latencySummary     `json:"lock_wait"`
}

type latencySummary struct {
	Count      uint64  `json:"count"`
	AvgSeconds float64 `json:"avg_seconds"`
}

func (h *AdminHandler) snapshotEngine() engineSnapshot {
	snap := engineSnapshot{
		SlotQueries: map[string]float64{},
		Bookings:    map[string]float64{},
	}
	if h.gatherer == nil {
		return snap
	}
	families, err := h.gatherer.Gather()
	if err != nil {
		h.logger.Error("metrics gather failed", "error", err)
		return snap
	}
	for _, mf := range families {
		switch mf.GetName() {
		case "wellfront_scheduling_slot_queries_total":
			for _, m := range mf.GetMetric() {
				snap.SlotQueries[labelValue(m, "status")] = m.GetCounter().GetValue()
			}
		case "wellfront_scheduling_bookings_total":
			for _, m := range mf.GetMetric() {
				snap.Bookings[labelValue(m, "result")] = m.GetCounter().GetValue()
			}
		case "wellfront_scheduling_resolve_latency_seconds":
			snap.ResolveLatency = summarizeHistogram(mf)
		case "wellfront_scheduling_booking_lock_wait_seconds":
			snap.LockWait = summarizeHistogram(mf)
		}
	}
	return snap
}

func summarizeHistogram(mf *dto.MetricFamily) latencySummary {
	var s latencySummary
	var sum float64
	for _, m := range mf.GetMetric() {
		hist := m.GetHistogram()
		s.Count += hist.GetSampleCount()
		sum += hist.GetSampleSum()
	}
	if s.Count > 0 {
		s.AvgSeconds = sum / float64(s.Count)
	}
	return s
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
