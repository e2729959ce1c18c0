package schedule

import (
	"time"

	"github.com/wellfront/scheduling-engine/internal/interval"
)

// FilterConflicts removes slots that overlap any busy interval, along with
// slots starting before earliest. Any nonzero overlap disqualifies a slot;
// a busy interval ending exactly at a slot's start does not. slots must be
// ascending by start and busy normalized, which is what QuantizeSlots and
// BlockingIntervals produce.
func FilterConflicts(slots []Slot, busy []interval.Interval, earliest time.Time) []Slot {
	out := make([]Slot, 0, len(slots))
	j := 0
	for _, s := range slots {
		if s.Start.Before(earliest) {
			continue
		}
		for j < len(busy) && !busy[j].End.After(s.Start) {
			j++
		}
		if j < len(busy) && busy[j].Start.Before(s.End) {
			continue
		}
		out = append(out, s)
	}
	return out
}
