package schedule

import (
	"time"

	"github.com/wellfront/scheduling-engine/internal/interval"
)

// Snapshot is the schedule state a resolution pass reads. The service
// assembles it from the collaborator stores; the booking guard assembles a
// narrow one inside its transaction.
type Snapshot struct {
	Template     *WeeklyTemplate
	Overrides    []OverrideBlock
	Blackouts    []BlackoutPeriod
	Appointments []Appointment
}

// ResolveOpenSlots runs the pure pipeline over a snapshot: expand the
// template and overrides, subtract blackouts, quantize into slots, then
// drop slots that collide with blocking appointments or start before
// now + minimum lead. The result is ordered by start and deterministic for
// a given snapshot, query and now.
func ResolveOpenSlots(snap Snapshot, q SlotQuery, now time.Time) ([]Slot, error) {
	working, err := ExpandTemplate(snap.Template, snap.Overrides, q.RangeStart, q.RangeEnd)
	if err != nil {
		return nil, err
	}
	loc, err := snap.Template.Location()
	if err != nil {
		return nil, err
	}
	available := interval.Subtract(working, ExpandBlackouts(snap.Blackouts, loc))
	slots := QuantizeSlots(available, q.SlotDuration(), q.Buffer())
	return FilterConflicts(slots, BlockingIntervals(snap.Appointments), now.Add(q.MinLead())), nil
}
