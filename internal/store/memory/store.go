// Package memory backs the engine with process-local storage. It mirrors
// the postgres backend's semantics, reservation guard included, and serves
// development setups and tests that run without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wellfront/scheduling-engine/internal/events"
	"github.com/wellfront/scheduling-engine/internal/schedule"
)

// Store keeps all schedule state in process. Values are copied on the way
// in and out; callers never share memory with the store.
type Store struct {
	mu           sync.RWMutex
	templates    map[uuid.UUID]schedule.WeeklyTemplate
	overrides    map[uuid.UUID][]schedule.OverrideBlock
	blackouts    map[uuid.UUID][]schedule.BlackoutPeriod
	appointments map[uuid.UUID]schedule.Appointment
	settings     map[uuid.UUID]schedule.ProviderSettings
	feed         []events.OutboxEntry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		templates:    make(map[uuid.UUID]schedule.WeeklyTemplate),
		overrides:    make(map[uuid.UUID][]schedule.OverrideBlock),
		blackouts:    make(map[uuid.UUID][]schedule.BlackoutPeriod),
		appointments: make(map[uuid.UUID]schedule.Appointment),
		settings:     make(map[uuid.UUID]schedule.ProviderSettings),
	}
}

// GetWeeklyTemplate returns the provider's template or schedule.ErrNotFound.
func (s *Store) GetWeeklyTemplate(ctx context.Context, providerID uuid.UUID) (*schedule.WeeklyTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[providerID]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	cpy := tpl
	return &cpy, nil
}

// SaveWeeklyTemplate replaces the provider's whole week.
func (s *Store) SaveWeeklyTemplate(ctx context.Context, tpl *schedule.WeeklyTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl.UpdatedAt = time.Now().UTC()
	s.templates[tpl.ProviderID] = *tpl
	return nil
}

// GetOverrideBlocks returns override blocks that can touch the range, with
// the same day of slop around one-time blocks as the postgres backend.
func (s *Store) GetOverrideBlocks(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) ([]schedule.OverrideBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := schedule.DateOf(rangeStart, time.UTC).AddDays(-1)
	hi := schedule.DateOf(rangeEnd, time.UTC).AddDays(1)

	var out []schedule.OverrideBlock
	for _, o := range s.overrides[providerID] {
		if o.Date != nil && (o.Date.Before(lo) || o.Date.After(hi)) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// AddOverrideBlock stores an override, assigning ID and timestamp when
// absent.
func (s *Store) AddOverrideBlock(ctx context.Context, block *schedule.OverrideBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}
	s.overrides[block.ProviderID] = append(s.overrides[block.ProviderID], *block)
	return nil
}

// RemoveOverrideBlock deletes an override scoped to its provider;
// schedule.ErrNotFound when absent.
func (s *Store) RemoveOverrideBlock(ctx context.Context, providerID, blockID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocks := s.overrides[providerID]
	for i, o := range blocks {
		if o.ID == blockID {
			s.overrides[providerID] = append(blocks[:i:i], blocks[i+1:]...)
			return nil
		}
	}
	return schedule.ErrNotFound
}

// GetBlackoutPeriods returns blackouts that can touch the range.
func (s *Store) GetBlackoutPeriods(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) ([]schedule.BlackoutPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := schedule.DateOf(rangeStart, time.UTC).AddDays(-1)
	hi := schedule.DateOf(rangeEnd, time.UTC).AddDays(1)

	var out []schedule.BlackoutPeriod
	for _, b := range s.blackouts[providerID] {
		if b.WholeDay() {
			if b.EndDate.Before(lo) || b.StartDate.After(hi) {
				continue
			}
		} else if !b.StartsAt.Before(rangeEnd) || !b.EndsAt.After(rangeStart) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// AddBlackoutPeriod stores a blackout, assigning ID and timestamp when
// absent.
func (s *Store) AddBlackoutPeriod(ctx context.Context, period *schedule.BlackoutPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}
	s.blackouts[period.ProviderID] = append(s.blackouts[period.ProviderID], *period)
	return nil
}

// RemoveBlackoutPeriod deletes a blackout scoped to its provider;
// schedule.ErrNotFound when absent.
func (s *Store) RemoveBlackoutPeriod(ctx context.Context, providerID, periodID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	periods := s.blackouts[providerID]
	for i, b := range periods {
		if b.ID == periodID {
			s.blackouts[providerID] = append(periods[:i:i], periods[i+1:]...)
			return nil
		}
	}
	return schedule.ErrNotFound
}

// GetAppointments returns appointments overlapping the half-open range with
// one of the given statuses, ordered by start.
func (s *Store) GetAppointments(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []schedule.AppointmentStatus) ([]schedule.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appointmentsLocked(providerID, rangeStart, rangeEnd, statuses), nil
}

func (s *Store) appointmentsLocked(providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []schedule.AppointmentStatus) []schedule.Appointment {
	var out []schedule.Appointment
	for _, a := range s.appointments {
		if a.ProviderID != providerID {
			continue
		}
		if !a.StartsAt.Before(rangeEnd) || !a.EndsAt.After(rangeStart) {
			continue
		}
		if !statusIn(a.Status, statuses) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}

// GetAppointment loads one appointment; schedule.ErrNotFound when absent.
func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	cpy := a
	return &cpy, nil
}

// GetProviderSettings loads per-provider booking defaults;
// schedule.ErrNotFound when the provider has none.
func (s *Store) GetProviderSettings(ctx context.Context, providerID uuid.UUID) (*schedule.ProviderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[providerID]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	cpy := settings
	return &cpy, nil
}

// SaveProviderSettings stores per-provider booking defaults. The postgres
// backend seeds these rows out of band; here tests and dev setups do.
func (s *Store) SaveProviderSettings(ctx context.Context, settings *schedule.ProviderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = time.Now().UTC()
	s.settings[settings.ProviderID] = *settings
	return nil
}

// DashboardStats returns per-provider appointment counts for appointments
// created since the cutoff, ordered by provider.
func (s *Store) DashboardStats(ctx context.Context, since time.Time) ([]schedule.BookingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProvider := make(map[uuid.UUID]*schedule.BookingStats)
	for _, a := range s.appointments {
		if a.CreatedAt.Before(since) {
			continue
		}
		st, ok := byProvider[a.ProviderID]
		if !ok {
			st = &schedule.BookingStats{ProviderID: a.ProviderID}
			byProvider[a.ProviderID] = st
		}
		switch a.Status {
		case schedule.StatusScheduled:
			st.Scheduled++
		case schedule.StatusCompleted:
			st.Completed++
		case schedule.StatusCancelled:
			st.Cancelled++
		case schedule.StatusNoShow:
			st.NoShows++
		}
	}

	out := make([]schedule.BookingStats, 0, len(byProvider))
	for _, st := range byProvider {
		if done := st.Completed + st.NoShows; done > 0 {
			st.ShowRatePct = float64(st.Completed) / float64(done) * 100
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProviderID.String() < out[j].ProviderID.String()
	})
	return out, nil
}

// Events returns a copy of the committed event feed in commit order. The
// postgres backend drains its outbox table instead.
func (s *Store) Events() []events.OutboxEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.OutboxEntry(nil), s.feed...)
}

func statusIn(status schedule.AppointmentStatus, statuses []schedule.AppointmentStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}
