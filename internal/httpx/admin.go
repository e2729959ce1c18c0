package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wellfront/scheduling-engine/internal/audit"
	"github.com/wellfront/scheduling-engine/internal/booking"
	"github.com/wellfront/scheduling-engine/internal/http/middleware"
	"github.com/wellfront/scheduling-engine/internal/schedule"
	"github.com/wellfront/scheduling-engine/internal/tenancy"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

// StatsReader aggregates booking counts for the dashboard. Both store
// backends satisfy it.
type StatsReader interface {
	DashboardStats(ctx context.Context, since time.Time) ([]schedule.BookingStats, error)
}

// AuditReader queries the booking audit trail. *audit.Trail satisfies it.
type AuditReader interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
	RecordScheduleChange(ctx context.Context, providerID uuid.UUID, actor, changed string) error
}

// AdminHandler serves schedule administration, appointment lifecycle
// transitions and the bookings dashboard. Audit may be nil when the
// deployment runs without a trail database.
type AdminHandler struct {
	schedule *schedule.Service
	booking  *booking.Service
	stats    StatsReader
	audit    AuditReader
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(scheduleSvc *schedule.Service, bookingSvc *booking.Service, stats StatsReader, trail AuditReader, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{
		schedule: scheduleSvc,
		booking:  bookingSvc,
		stats:    stats,
		audit:    trail,
		gatherer: prometheus.DefaultGatherer,
		logger:   logger,
	}
}

// WithGatherer points the dashboard's engine snapshot at a specific
// metrics registry.
func (h *AdminHandler) WithGatherer(g prometheus.Gatherer) *AdminHandler {
	h.gatherer = g
	return h
}

// GetTemplate returns the provider's weekly template.
// GET /admin/providers/{providerID}/template
func (h *AdminHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}

	tpl, err := h.schedule.GetWeeklyTemplate(r.Context(), providerID)
	if err != nil {
		writeEngineError(w, h.logger, "template read failed", err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// PutTemplate replaces the provider's weekly template as one unit. There
// is no partial day update; clients send all seven days.
// PUT /admin/providers/{providerID}/template
func (h *AdminHandler) PutTemplate(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}

	var tpl schedule.WeeklyTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	tpl.ProviderID = providerID

	if err := h.schedule.SaveWeeklyTemplate(r.Context(), &tpl); err != nil {
		writeEngineError(w, h.logger, "template save failed", err)
		return
	}

	h.recordChange(r, providerID, "weekly template replaced")
	writeJSON(w, http.StatusOK, tpl)
}

// AddOverride adds an availability override block.
// POST /admin/providers/{providerID}/overrides
func (h *AdminHandler) AddOverride(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}

	var block schedule.OverrideBlock
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	block.ProviderID = providerID

	saved, err := h.schedule.AddOverrideBlock(r.Context(), &block)
	if err != nil {
		writeEngineError(w, h.logger, "override add failed", err)
		return
	}

	h.recordChange(r, providerID, "override block added")
	writeJSON(w, http.StatusCreated, saved)
}

// RemoveOverride deletes an override block.
// DELETE /admin/providers/{providerID}/overrides/{id}
func (h *AdminHandler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}
	blockID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error": "invalid override id"}`, http.StatusBadRequest)
		return
	}

	if err := h.schedule.RemoveOverrideBlock(r.Context(), providerID, blockID); err != nil {
		writeEngineError(w, h.logger, "override remove failed", err)
		return
	}

	h.recordChange(r, providerID, "override block removed")
	w.WriteHeader(http.StatusNoContent)
}

// AddBlackout adds a blackout period. Blackouts win over every source of
// availability.
// POST /admin/providers/{providerID}/blackouts
func (h *AdminHandler) AddBlackout(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}

	var period schedule.BlackoutPeriod
	if err := json.NewDecoder(r.Body).Decode(&period); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	period.ProviderID = providerID

	saved, err := h.schedule.AddBlackoutPeriod(r.Context(), &period)
	if err != nil {
		writeEngineError(w, h.logger, "blackout add failed", err)
		return
	}

	h.recordChange(r, providerID, "blackout period added")
	writeJSON(w, http.StatusCreated, saved)
}

// RemoveBlackout deletes a blackout period.
// DELETE /admin/providers/{providerID}/blackouts/{id}
func (h *AdminHandler) RemoveBlackout(w http.ResponseWriter, r *http.Request) {
	providerID, ok := tenancy.ProviderIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "provider scope required"}`, http.StatusBadRequest)
		return
	}
	periodID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error": "invalid blackout id"}`, http.StatusBadRequest)
		return
	}

	if err := h.schedule.RemoveBlackoutPeriod(r.Context(), providerID, periodID); err != nil {
		writeEngineError(w, h.logger, "blackout remove failed", err)
		return
	}

	h.recordChange(r, providerID, "blackout period removed")
	w.WriteHeader(http.StatusNoContent)
}

// recordChange writes a schedule audit entry attributed to the admin
// token's subject. Audit failures are logged, never surfaced.
func (h *AdminHandler) recordChange(r *http.Request, providerID uuid.UUID, changed string) {
	if h.audit == nil {
		return
	}
	actor := "admin"
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		actor = claims.Subject
	}
	if err := h.audit.RecordScheduleChange(r.Context(), providerID, actor, changed); err != nil {
		h.logger.Error("schedule audit failed", "provider_id", providerID, "error", err)
	}
}
