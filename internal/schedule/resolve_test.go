package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// The resolution scenarios below share a provider working Mondays
// 09:00-17:00 UTC and query the Monday of March 2, 2026 with 30-minute
// slots and no buffer.

func mondaySnapshot() Snapshot {
	return Snapshot{
		Template: weekTemplate("UTC", map[time.Weekday]DayHours{time.Monday: workday(9, 17)}),
	}
}

func mondayQuery() SlotQuery {
	return SlotQuery{
		ProviderID:          uuid.New(),
		RangeStart:          utc(2, 0, 0),
		RangeEnd:            utc(3, 0, 0),
		SlotDurationMinutes: 30,
	}
}

func resolveAt(t *testing.T, snap Snapshot, q SlotQuery, now time.Time) []Slot {
	t.Helper()
	slots, err := ResolveOpenSlots(snap, q, now)
	if err != nil {
		t.Fatalf("ResolveOpenSlots: %v", err)
	}
	return slots
}

func TestResolveFullWorkingDay(t *testing.T) {
	slots := resolveAt(t, mondaySnapshot(), mondayQuery(), utc(1, 0, 0))

	if len(slots) != 16 {
		t.Fatalf("got %d slots, want 16", len(slots))
	}
	if !slots[0].Start.Equal(utc(2, 9, 0)) {
		t.Fatalf("first slot starts %s, want 09:00", slots[0].Start)
	}
	if !slots[15].Start.Equal(utc(2, 16, 30)) {
		t.Fatalf("last slot starts %s, want 16:30", slots[15].Start)
	}
}

func TestResolveBlackoutRemovesMiddaySlots(t *testing.T) {
	snap := mondaySnapshot()
	start, end := utc(2, 12, 0), utc(2, 13, 0)
	snap.Blackouts = []BlackoutPeriod{{ID: uuid.New(), StartsAt: &start, EndsAt: &end, Reason: "lunch"}}

	slots := resolveAt(t, snap, mondayQuery(), utc(1, 0, 0))

	if len(slots) != 14 {
		t.Fatalf("got %d slots, want 14", len(slots))
	}
	blocked := Slot{Start: start, End: end}
	for _, s := range slots {
		if s.Start.Before(blocked.End) && blocked.Start.Before(s.End) {
			t.Fatalf("slot [%s, %s) overlaps the blackout", s.Start, s.End)
		}
	}
}

func TestResolveBookedSlotDisappears(t *testing.T) {
	snap := mondaySnapshot()
	snap.Appointments = []Appointment{{
		ID:       uuid.New(),
		StartsAt: utc(2, 10, 0),
		EndsAt:   utc(2, 10, 30),
		Status:   StatusScheduled,
	}}

	slots := resolveAt(t, snap, mondayQuery(), utc(1, 0, 0))

	if len(slots) != 15 {
		t.Fatalf("got %d slots, want 15", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(utc(2, 10, 0)) {
			t.Fatal("10:00 slot should be gone")
		}
	}
}

func TestResolveCancelledAppointmentReleasesSlot(t *testing.T) {
	snap := mondaySnapshot()
	snap.Appointments = []Appointment{{
		ID:       uuid.New(),
		StartsAt: utc(2, 10, 0),
		EndsAt:   utc(2, 10, 30),
		Status:   StatusCancelled,
	}}

	slots := resolveAt(t, snap, mondayQuery(), utc(1, 0, 0))
	if len(slots) != 16 {
		t.Fatalf("got %d slots, want 16 after cancellation", len(slots))
	}
}

func TestResolveRecurringSaturdayOverride(t *testing.T) {
	snap := mondaySnapshot()
	sat := time.Saturday
	snap.Overrides = []OverrideBlock{{
		ID:      uuid.New(),
		Weekday: &sat,
		Start:   TimeOfDay{Hour: 10},
		End:     TimeOfDay{Hour: 12},
	}}

	q := mondayQuery()
	q.RangeStart = utc(7, 0, 0) // Saturday March 7
	q.RangeEnd = utc(8, 0, 0)

	slots := resolveAt(t, snap, q, utc(1, 0, 0))

	if len(slots) != 4 {
		t.Fatalf("got %d slots, want 4", len(slots))
	}
	if !slots[0].Start.Equal(utc(7, 10, 0)) || !slots[3].Start.Equal(utc(7, 11, 30)) {
		t.Fatalf("saturday slots misplaced: %v", slots)
	}
}

func TestResolveMinLeadHidesNearSlots(t *testing.T) {
	q := mondayQuery()
	q.MinLeadMinutes = 60

	// now is 10:05 on the queried Monday; earliest bookable start is 11:05
	slots := resolveAt(t, mondaySnapshot(), q, utc(2, 10, 5))

	if len(slots) != 11 {
		t.Fatalf("got %d slots, want 11", len(slots))
	}
	if !slots[0].Start.Equal(utc(2, 11, 30)) {
		t.Fatalf("first slot starts %s, want 11:30", slots[0].Start)
	}
}

func TestResolveBlackoutBeatsOverride(t *testing.T) {
	snap := mondaySnapshot()
	mon := time.Monday
	snap.Overrides = []OverrideBlock{{
		ID:      uuid.New(),
		Weekday: &mon,
		Start:   TimeOfDay{Hour: 12},
		End:     TimeOfDay{Hour: 13},
	}}
	day := Date{Year: 2026, Month: time.March, Day: 2}
	snap.Blackouts = []BlackoutPeriod{{ID: uuid.New(), StartDate: &day, EndDate: &day, Reason: "closed"}}

	slots := resolveAt(t, snap, mondayQuery(), utc(1, 0, 0))
	if len(slots) != 0 {
		t.Fatalf("whole-day blackout must win over overrides, got %v", slots)
	}
}
