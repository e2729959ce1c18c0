package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestService(st *stubStores) *Service {
	return NewService(Stores{
		Templates:    st,
		Overrides:    st,
		Blackouts:    st,
		Appointments: st,
		Settings:     st,
	}, nil).WithClock(func() time.Time { return utc(1, 0, 0) })
}

func TestServiceGetAvailableSlots(t *testing.T) {
	st := &stubStores{tpl: weekTemplate("UTC", map[time.Weekday]DayHours{time.Monday: workday(9, 17)})}
	svc := newTestService(st)

	slots, err := svc.GetAvailableSlots(context.Background(), mondayQuery())
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("got %d slots, want 16", len(slots))
	}
}

func TestServiceRejectsInvalidQueryBeforeStores(t *testing.T) {
	st := &stubStores{tplErr: errors.New("must not be called")}
	svc := newTestService(st)

	q := mondayQuery()
	q.RangeEnd = q.RangeStart

	if _, err := svc.GetAvailableSlots(context.Background(), q); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
	if st.templateReads != 0 {
		t.Fatal("invalid query must fail before any store read")
	}
}

func TestServiceEnforcesMaxRange(t *testing.T) {
	st := &stubStores{tpl: weekTemplate("UTC", nil)}
	svc := newTestService(st).WithMaxRange(7 * 24 * time.Hour)

	q := mondayQuery()
	q.RangeEnd = q.RangeStart.Add(8 * 24 * time.Hour)

	if _, err := svc.GetAvailableSlots(context.Background(), q); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestServiceWrapsStoreFailures(t *testing.T) {
	st := &stubStores{tplErr: errors.New("connection refused")}
	svc := newTestService(st)

	_, err := svc.GetAvailableSlots(context.Background(), mondayQuery())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestServiceResolvesWithoutTemplate(t *testing.T) {
	// provider has no template row but a one-time override opens two hours
	date := Date{Year: 2026, Month: time.March, Day: 2}
	st := &stubStores{
		overrides: []OverrideBlock{{
			ID:    uuid.New(),
			Date:  &date,
			Start: TimeOfDay{Hour: 10},
			End:   TimeOfDay{Hour: 12},
		}},
	}
	svc := newTestService(st)

	slots, err := svc.GetAvailableSlots(context.Background(), mondayQuery())
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("got %d slots, want 4 from override alone", len(slots))
	}
}

func TestServiceAppliesProviderDefaults(t *testing.T) {
	st := &stubStores{
		tpl:      weekTemplate("UTC", map[time.Weekday]DayHours{time.Monday: workday(9, 17)}),
		settings: &ProviderSettings{SlotDurationMinutes: 60, BufferMinutes: 0},
	}
	svc := newTestService(st)

	q := mondayQuery()
	q.SlotDurationMinutes = 0 // unset, take the provider's 60 minutes

	slots, err := svc.GetAvailableSlots(context.Background(), q)
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("got %d slots, want 8 hour-long slots", len(slots))
	}
}

func TestServiceUsesCache(t *testing.T) {
	st := &stubStores{tpl: weekTemplate("UTC", map[time.Weekday]DayHours{time.Monday: workday(9, 17)})}
	cache := newFakeCache()
	svc := newTestService(st).WithCache(cache)
	q := mondayQuery()

	if _, err := svc.GetAvailableSlots(context.Background(), q); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := svc.GetAvailableSlots(context.Background(), q); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if st.templateReads != 1 {
		t.Fatalf("template read %d times, want 1 (second call served from cache)", st.templateReads)
	}
}

func TestServiceSaveTemplateInvalidatesCache(t *testing.T) {
	tpl := weekTemplate("UTC", map[time.Weekday]DayHours{time.Monday: workday(9, 17)})
	st := &stubStores{tpl: tpl}
	cache := newFakeCache()
	svc := newTestService(st).WithCache(cache)

	if err := svc.SaveWeeklyTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("SaveWeeklyTemplate: %v", err)
	}
	if st.savedTemplate == nil {
		t.Fatal("template not persisted")
	}
	if cache.invalidations != 1 {
		t.Fatalf("cache invalidated %d times, want 1", cache.invalidations)
	}
}

func TestServiceSaveTemplateRejectsInvalid(t *testing.T) {
	st := &stubStores{}
	svc := newTestService(st)

	bad := weekTemplate("UTC", map[time.Weekday]DayHours{time.Monday: workday(17, 9)})
	if err := svc.SaveWeeklyTemplate(context.Background(), bad); !errors.Is(err, ErrInvalidTemplate) {
		t.Fatalf("err = %v, want ErrInvalidTemplate", err)
	}
	if st.savedTemplate != nil {
		t.Fatal("invalid template must not reach the store")
	}
}

func TestServiceAddOverrideAssignsID(t *testing.T) {
	st := &stubStores{}
	svc := newTestService(st)
	sat := time.Saturday

	block, err := svc.AddOverrideBlock(context.Background(), &OverrideBlock{
		ProviderID: uuid.New(),
		Weekday:    &sat,
		Start:      TimeOfDay{Hour: 10},
		End:        TimeOfDay{Hour: 12},
	})
	if err != nil {
		t.Fatalf("AddOverrideBlock: %v", err)
	}
	if block.ID == uuid.Nil {
		t.Fatal("expected generated override id")
	}
	if len(st.addedOverrides) != 1 {
		t.Fatalf("stored %d overrides, want 1", len(st.addedOverrides))
	}
}

// stubStores implements every collaborator store over in-memory fields.
type stubStores struct {
	tpl            *WeeklyTemplate
	tplErr         error
	overrides      []OverrideBlock
	blackouts      []BlackoutPeriod
	appts          []Appointment
	settings       *ProviderSettings
	templateReads  int
	savedTemplate  *WeeklyTemplate
	addedOverrides []OverrideBlock
}

func (s *stubStores) GetWeeklyTemplate(ctx context.Context, providerID uuid.UUID) (*WeeklyTemplate, error) {
	s.templateReads++
	if s.tplErr != nil {
		return nil, s.tplErr
	}
	if s.tpl == nil {
		return nil, ErrNotFound
	}
	return s.tpl, nil
}

func (s *stubStores) SaveWeeklyTemplate(ctx context.Context, tpl *WeeklyTemplate) error {
	s.savedTemplate = tpl
	return nil
}

func (s *stubStores) GetOverrideBlocks(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) ([]OverrideBlock, error) {
	return s.overrides, nil
}

func (s *stubStores) AddOverrideBlock(ctx context.Context, block *OverrideBlock) error {
	s.addedOverrides = append(s.addedOverrides, *block)
	return nil
}

func (s *stubStores) RemoveOverrideBlock(ctx context.Context, providerID, blockID uuid.UUID) error {
	return ErrNotFound
}

func (s *stubStores) GetBlackoutPeriods(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) ([]BlackoutPeriod, error) {
	return s.blackouts, nil
}

func (s *stubStores) AddBlackoutPeriod(ctx context.Context, period *BlackoutPeriod) error {
	return nil
}

func (s *stubStores) RemoveBlackoutPeriod(ctx context.Context, providerID, periodID uuid.UUID) error {
	return ErrNotFound
}

func (s *stubStores) GetAppointments(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []AppointmentStatus) ([]Appointment, error) {
	return s.appts, nil
}

func (s *stubStores) GetProviderSettings(ctx context.Context, providerID uuid.UUID) (*ProviderSettings, error) {
	if s.settings == nil {
		return nil, ErrNotFound
	}
	return s.settings, nil
}

// fakeCache is an in-memory SlotCache counting invalidations.
type fakeCache struct {
	entries       map[string][]Slot
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]Slot{}}
}

func (c *fakeCache) Get(ctx context.Context, q SlotQuery) ([]Slot, bool) {
	slots, ok := c.entries[fmt.Sprintf("%+v", q)]
	return slots, ok
}

func (c *fakeCache) Set(ctx context.Context, q SlotQuery, slots []Slot) {
	c.entries[fmt.Sprintf("%+v", q)] = slots
}

func (c *fakeCache) Invalidate(ctx context.Context, providerID uuid.UUID) {
	c.invalidations++
	c.entries = map[string][]Slot{}
}
