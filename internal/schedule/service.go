package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wellfront/scheduling-engine/internal/observability/metrics"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

var scheduleTracer = otel.Tracer("wellfront.internal.schedule")

// TemplateStore loads and replaces weekly working-hour templates.
// GetWeeklyTemplate returns ErrNotFound for providers without one.
type TemplateStore interface {
	GetWeeklyTemplate(ctx context.Context, providerID uuid.UUID) (*WeeklyTemplate, error)
	SaveWeeklyTemplate(ctx context.Context, tpl *WeeklyTemplate) error
}

// OverrideStore manages ad-hoc availability blocks. Get may over-fetch
// around the range; the expander clips exactly.
type OverrideStore interface {
	GetOverrideBlocks(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) ([]OverrideBlock, error)
	AddOverrideBlock(ctx context.Context, block *OverrideBlock) error
	RemoveOverrideBlock(ctx context.Context, providerID, blockID uuid.UUID) error
}

// BlackoutStore manages time-off periods.
type BlackoutStore interface {
	GetBlackoutPeriods(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) ([]BlackoutPeriod, error)
	AddBlackoutPeriod(ctx context.Context, period *BlackoutPeriod) error
	RemoveBlackoutPeriod(ctx context.Context, providerID, periodID uuid.UUID) error
}

// AppointmentReader reads appointments for conflict filtering. The write
// side belongs to the reservation guard.
type AppointmentReader interface {
	GetAppointments(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []AppointmentStatus) ([]Appointment, error)
}

// SettingsStore reads per-provider booking defaults. Missing rows return
// ErrNotFound and fall back to global defaults.
type SettingsStore interface {
	GetProviderSettings(ctx context.Context, providerID uuid.UUID) (*ProviderSettings, error)
}

// SlotCache is a best-effort read cache for resolved slots. Implementations
// swallow their own failures; a broken cache degrades to misses.
type SlotCache interface {
	Get(ctx context.Context, q SlotQuery) ([]Slot, bool)
	Set(ctx context.Context, q SlotQuery, slots []Slot)
	Invalidate(ctx context.Context, providerID uuid.UUID)
}

// Stores bundles the collaborator stores the service reads and writes.
// Settings may be nil; everything else is required.
type Stores struct {
	Templates    TemplateStore
	Overrides    OverrideStore
	Blackouts    BlackoutStore
	Appointments AppointmentReader
	Settings     SettingsStore
}

// Defaults are the global fallbacks applied when a provider has no
// settings row.
type Defaults struct {
	SlotDurationMinutes int
	BufferMinutes       int
	MinLeadMinutes      int
}

// Service resolves open slots and administers schedule data. Reads are
// side-effect free; schedule writes invalidate the provider's cached slots.
type Service struct {
	stores   Stores
	cache    SlotCache
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger
	now      func() time.Time
	maxRange time.Duration
	defaults Defaults
}

// NewService constructs a schedule service with the required stores.
func NewService(stores Stores, logger *logging.Logger) *Service {
	if stores.Templates == nil || stores.Overrides == nil || stores.Blackouts == nil || stores.Appointments == nil {
		panic("schedule: template, override, blackout and appointment stores required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		stores:   stores,
		logger:   logger.Component("schedule"),
		now:      time.Now,
		maxRange: 60 * 24 * time.Hour,
		defaults: Defaults{SlotDurationMinutes: 30},
	}
}

// WithCache attaches a slot cache.
func (s *Service) WithCache(c SlotCache) *Service {
	s.cache = c
	return s
}

// WithMetrics attaches engine metrics.
func (s *Service) WithMetrics(m *metrics.EngineMetrics) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the time source; tests pin it.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMaxRange bounds queryable spans; zero disables the bound.
func (s *Service) WithMaxRange(d time.Duration) *Service {
	s.maxRange = d
	return s
}

// WithDefaults replaces the global fallback knobs.
func (s *Service) WithDefaults(d Defaults) *Service {
	s.defaults = d
	return s
}

// GetAvailableSlots resolves the open slots for one provider over the query
// range. The call is read-only and idempotent: identical schedule state
// yields identical slots.
func (s *Service) GetAvailableSlots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	ctx, span := scheduleTracer.Start(ctx, "schedule.get_available_slots")
	defer span.End()
	span.SetAttributes(
		attribute.String("wellfront.provider_id", q.ProviderID.String()),
		attribute.String("wellfront.range_start", q.RangeStart.Format(time.RFC3339)),
		attribute.String("wellfront.range_end", q.RangeEnd.Format(time.RFC3339)),
	)

	started := s.now()
	q, err := s.applyDefaults(ctx, q)
	if err == nil {
		err = q.Validate(s.maxRange)
	}
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveSlotQuery("invalid", 0, s.now().Sub(started).Seconds())
		return nil, err
	}

	if s.cache != nil {
		if slots, ok := s.cache.Get(ctx, q); ok {
			s.metrics.ObserveCache("hit")
			s.metrics.ObserveSlotQuery("ok", len(slots), s.now().Sub(started).Seconds())
			return slots, nil
		}
		s.metrics.ObserveCache("miss")
	}

	snap, err := s.loadSnapshot(ctx, q.ProviderID, q.RangeStart, q.RangeEnd)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveSlotQuery("upstream_error", 0, s.now().Sub(started).Seconds())
		return nil, err
	}

	slots, err := ResolveOpenSlots(*snap, q, s.now())
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveSlotQuery("invalid", 0, s.now().Sub(started).Seconds())
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, q, slots)
	}
	span.SetAttributes(attribute.Int("wellfront.slots", len(slots)))
	s.metrics.ObserveSlotQuery("ok", len(slots), s.now().Sub(started).Seconds())
	s.logger.Debug("slots resolved", "provider_id", q.ProviderID, "slots", len(slots))
	return slots, nil
}

// ProviderDefaults merges a provider's settings row over the global
// defaults. Handlers use it to fill unset query knobs.
func (s *Service) ProviderDefaults(ctx context.Context, providerID uuid.UUID) (Defaults, error) {
	d := s.defaults
	if s.stores.Settings == nil {
		return d, nil
	}
	settings, err := s.stores.Settings.GetProviderSettings(ctx, providerID)
	if errors.Is(err, ErrNotFound) {
		return d, nil
	}
	if err != nil {
		return d, upstream("load settings", err)
	}
	if settings.SlotDurationMinutes > 0 {
		d.SlotDurationMinutes = settings.SlotDurationMinutes
	}
	if settings.BufferMinutes > 0 {
		d.BufferMinutes = settings.BufferMinutes
	}
	if settings.MinLeadMinutes > 0 {
		d.MinLeadMinutes = settings.MinLeadMinutes
	}
	return d, nil
}

// applyDefaults fills a query whose duration was left zero. Such a query is
// treated as fully unset and takes all three knobs from provider defaults.
func (s *Service) applyDefaults(ctx context.Context, q SlotQuery) (SlotQuery, error) {
	if q.SlotDurationMinutes != 0 {
		return q, nil
	}
	d, err := s.ProviderDefaults(ctx, q.ProviderID)
	if err != nil {
		return q, err
	}
	q.SlotDurationMinutes = d.SlotDurationMinutes
	q.BufferMinutes = d.BufferMinutes
	q.MinLeadMinutes = d.MinLeadMinutes
	return q, nil
}

// LoadCalendar reads the provider's template, overrides and blackouts for a
// range. A provider without a template still resolves: overrides alone can
// open time, so the snapshot gets an inactive template in the provider's
// settings timezone (UTC failing that). Appointments are left to the caller;
// the reservation guard reads them inside its transaction.
func (s *Service) LoadCalendar(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) (*Snapshot, error) {
	tpl, err := s.stores.Templates.GetWeeklyTemplate(ctx, providerID)
	switch {
	case errors.Is(err, ErrNotFound):
		tpl = &WeeklyTemplate{ProviderID: providerID, Timezone: s.fallbackTimezone(ctx, providerID)}
	case err != nil:
		return nil, upstream("load template", err)
	}

	overrides, err := s.stores.Overrides.GetOverrideBlocks(ctx, providerID, rangeStart, rangeEnd)
	if err != nil {
		return nil, upstream("load overrides", err)
	}
	blackouts, err := s.stores.Blackouts.GetBlackoutPeriods(ctx, providerID, rangeStart, rangeEnd)
	if err != nil {
		return nil, upstream("load blackouts", err)
	}

	return &Snapshot{
		Template:  tpl,
		Overrides: overrides,
		Blackouts: blackouts,
	}, nil
}

func (s *Service) loadSnapshot(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) (*Snapshot, error) {
	snap, err := s.LoadCalendar(ctx, providerID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	appts, err := s.stores.Appointments.GetAppointments(ctx, providerID, rangeStart, rangeEnd, BlockingStatuses)
	if err != nil {
		return nil, upstream("load appointments", err)
	}
	snap.Appointments = appts
	return snap, nil
}

func (s *Service) fallbackTimezone(ctx context.Context, providerID uuid.UUID) string {
	if s.stores.Settings != nil {
		if settings, err := s.stores.Settings.GetProviderSettings(ctx, providerID); err == nil && settings.Timezone != "" {
			return settings.Timezone
		}
	}
	return "UTC"
}

// GetWeeklyTemplate exposes the stored template for admin reads.
func (s *Service) GetWeeklyTemplate(ctx context.Context, providerID uuid.UUID) (*WeeklyTemplate, error) {
	tpl, err := s.stores.Templates.GetWeeklyTemplate(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, upstream("load template", err)
	}
	return tpl, nil
}

// SaveWeeklyTemplate validates and replaces the provider's whole week, then
// drops the provider's cached slots.
func (s *Service) SaveWeeklyTemplate(ctx context.Context, tpl *WeeklyTemplate) error {
	if tpl.ProviderID == uuid.Nil {
		return fmt.Errorf("schedule: template provider id required: %w", ErrInvalidTemplate)
	}
	if err := tpl.Validate(); err != nil {
		return err
	}
	if err := s.stores.Templates.SaveWeeklyTemplate(ctx, tpl); err != nil {
		return upstream("save template", err)
	}
	s.invalidate(ctx, tpl.ProviderID)
	s.logger.Info("weekly template replaced", "provider_id", tpl.ProviderID)
	return nil
}

// AddOverrideBlock validates and stores an availability addition.
func (s *Service) AddOverrideBlock(ctx context.Context, block *OverrideBlock) (*OverrideBlock, error) {
	if block.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("schedule: override provider id required: %w", ErrInvalidTemplate)
	}
	if err := block.Validate(); err != nil {
		return nil, err
	}
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	if err := s.stores.Overrides.AddOverrideBlock(ctx, block); err != nil {
		return nil, upstream("add override", err)
	}
	s.invalidate(ctx, block.ProviderID)
	s.logger.Info("override block added", "provider_id", block.ProviderID, "override_id", block.ID, "recurring", block.Recurring())
	return block, nil
}

// RemoveOverrideBlock deletes an override; ErrNotFound passes through.
func (s *Service) RemoveOverrideBlock(ctx context.Context, providerID, blockID uuid.UUID) error {
	if err := s.stores.Overrides.RemoveOverrideBlock(ctx, providerID, blockID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return upstream("remove override", err)
	}
	s.invalidate(ctx, providerID)
	s.logger.Info("override block removed", "provider_id", providerID, "override_id", blockID)
	return nil
}

// AddBlackoutPeriod validates and stores a time-off period.
func (s *Service) AddBlackoutPeriod(ctx context.Context, period *BlackoutPeriod) (*BlackoutPeriod, error) {
	if period.ProviderID == uuid.Nil {
		return nil, fmt.Errorf("schedule: blackout provider id required: %w", ErrInvalidTemplate)
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	if err := s.stores.Blackouts.AddBlackoutPeriod(ctx, period); err != nil {
		return nil, upstream("add blackout", err)
	}
	s.invalidate(ctx, period.ProviderID)
	s.logger.Info("blackout period added", "provider_id", period.ProviderID, "blackout_id", period.ID)
	return period, nil
}

// RemoveBlackoutPeriod deletes a blackout; ErrNotFound passes through.
func (s *Service) RemoveBlackoutPeriod(ctx context.Context, providerID, periodID uuid.UUID) error {
	if err := s.stores.Blackouts.RemoveBlackoutPeriod(ctx, providerID, periodID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return upstream("remove blackout", err)
	}
	s.invalidate(ctx, providerID)
	s.logger.Info("blackout period removed", "provider_id", providerID, "blackout_id", periodID)
	return nil
}

// ListAppointments reads appointments for a provider range, any status set.
func (s *Service) ListAppointments(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []AppointmentStatus) ([]Appointment, error) {
	appts, err := s.stores.Appointments.GetAppointments(ctx, providerID, rangeStart, rangeEnd, statuses)
	if err != nil {
		return nil, upstream("list appointments", err)
	}
	return appts, nil
}

// InvalidateSlots drops cached slots for a provider. The booking service
// calls it after commits and cancellations.
func (s *Service) InvalidateSlots(ctx context.Context, providerID uuid.UUID) {
	s.invalidate(ctx, providerID)
}

func (s *Service) invalidate(ctx context.Context, providerID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, providerID)
	}
}

func upstream(op string, err error) error {
	return fmt.Errorf("schedule: %s: %w: %w", op, ErrUpstreamUnavailable, err)
}
