package schedule

import (
	"time"

	"github.com/wellfront/scheduling-engine/internal/interval"
)

// QuantizeSlots cuts normalized available intervals into slots of exactly
// slotDur, stepping slotDur+buffer from each interval's start. A slot is
// emitted only while it fits entirely inside its interval; partial
// remainders are dropped and no slot ever spans the gap between two
// disjoint intervals.
func QuantizeSlots(available []interval.Interval, slotDur, buffer time.Duration) []Slot {
	if slotDur <= 0 {
		return nil
	}
	step := slotDur + buffer
	slots := make([]Slot, 0, len(available))
	for _, iv := range available {
		for start := iv.Start; !start.Add(slotDur).After(iv.End); start = start.Add(step) {
			slots = append(slots, Slot{Start: start, End: start.Add(slotDur)})
		}
	}
	return slots
}
