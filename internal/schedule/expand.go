package schedule

import (
	"fmt"
	"time"

	"github.com/wellfront/scheduling-engine/internal/interval"
)

// ExpandTemplate materializes a weekly template plus its override blocks
// over [rangeStart, rangeEnd) into concrete instant intervals, clipped to
// the range and normalized.
//
// Expansion walks calendar dates in the template's timezone and pins each
// wall-clock window with time.Date, so DST transitions resolve per concrete
// date: a window on a fall-back day stays 09:00-17:00 local even though the
// day is 25 hours long, and windows falling into a spring-forward gap
// normalize forward.
func ExpandTemplate(tpl *WeeklyTemplate, overrides []OverrideBlock, rangeStart, rangeEnd time.Time) ([]interval.Interval, error) {
	if !rangeEnd.After(rangeStart) {
		return nil, fmt.Errorf("schedule: expand range end not after start: %w", ErrInvalidRange)
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	for i := range overrides {
		if err := overrides[i].Validate(); err != nil {
			return nil, err
		}
	}
	loc, err := tpl.Location()
	if err != nil {
		return nil, err
	}

	var raw []interval.Interval
	first := DateOf(rangeStart, loc)
	last := DateOf(rangeEnd, loc)
	for d := first; !d.After(last); d = d.AddDays(1) {
		if day := tpl.Days[d.Weekday()]; day.Active {
			raw = append(raw, interval.Interval{Start: day.Start.On(d, loc), End: day.End.On(d, loc)})
		}
		for i := range overrides {
			o := &overrides[i]
			if o.occursOn(d) {
				raw = append(raw, interval.Interval{Start: o.Start.On(d, loc), End: o.End.On(d, loc)})
			}
		}
	}

	bounds := []interval.Interval{{Start: rangeStart, End: rangeEnd}}
	return interval.Intersect(raw, bounds), nil
}

func (o *OverrideBlock) occursOn(d Date) bool {
	if o.Weekday != nil {
		return *o.Weekday == d.Weekday()
	}
	return o.Date != nil && *o.Date == d
}

// ExpandBlackouts converts blackout periods to instant intervals. Whole-day
// spans cover local midnight to midnight after the inclusive end date in
// loc; instant spans pass through. Rows missing a complete span are
// ignored, write validation keeps them out.
func ExpandBlackouts(blackouts []BlackoutPeriod, loc *time.Location) []interval.Interval {
	out := make([]interval.Interval, 0, len(blackouts))
	for i := range blackouts {
		b := &blackouts[i]
		switch {
		case b.StartDate != nil && b.EndDate != nil:
			out = append(out, interval.Interval{
				Start: b.StartDate.In(loc),
				End:   b.EndDate.AddDays(1).In(loc),
			})
		case b.StartsAt != nil && b.EndsAt != nil:
			out = append(out, interval.Interval{Start: *b.StartsAt, End: *b.EndsAt})
		}
	}
	return interval.Normalize(out)
}

// BlockingIntervals returns the normalized occupied ranges of appointments
// whose status blocks time. Cancelled and no-show appointments contribute
// nothing.
func BlockingIntervals(appts []Appointment) []interval.Interval {
	out := make([]interval.Interval, 0, len(appts))
	for i := range appts {
		if appts[i].Status.Blocking() {
			out = append(out, appts[i].Interval())
		}
	}
	return interval.Normalize(out)
}
