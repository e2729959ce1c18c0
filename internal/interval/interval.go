// Package interval implements half-open time range algebra: normalization,
// union, subtraction and intersection over [Start, End) intervals.
package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
// An interval whose End is not after its Start is empty.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the interval covers no time.
func (iv Interval) Empty() bool {
	return !iv.End.After(iv.Start)
}

// Duration returns End - Start, or zero for empty intervals.
func (iv Interval) Duration() time.Duration {
	if iv.Empty() {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether iv and other share any instant. Touching
// endpoints ([a,b) and [b,c)) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Covers reports whether iv fully contains other.
func (iv Interval) Covers(other Interval) bool {
	return !iv.Start.After(other.Start) && !iv.End.Before(other.End)
}

// Normalize drops empty intervals, sorts by start and merges overlapping or
// touching neighbours. The result is the canonical form: disjoint,
// non-touching, ascending. Normalizing a normalized set is a no-op.
func Normalize(ivs []Interval) []Interval {
	out := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	if len(out) <= 1 {
		return out
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	merged := out[:1]
	for _, iv := range out[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Union returns the normalized union of both sets.
func Union(a, b []Interval) []Interval {
	joined := make([]Interval, 0, len(a)+len(b))
	joined = append(joined, a...)
	joined = append(joined, b...)
	return Normalize(joined)
}

// Subtract removes every instant covered by remove from base and returns
// the normalized remainder. A remove interval splitting a base interval
// yields two pieces.
func Subtract(base, remove []Interval) []Interval {
	b := Normalize(base)
	r := Normalize(remove)
	if len(b) == 0 || len(r) == 0 {
		return b
	}
	out := make([]Interval, 0, len(b))
	for _, iv := range b {
		cur := iv
		for _, rm := range r {
			if !rm.End.After(cur.Start) {
				continue
			}
			if !rm.Start.Before(cur.End) {
				break
			}
			if rm.Start.After(cur.Start) {
				out = append(out, Interval{Start: cur.Start, End: rm.Start})
			}
			if rm.End.Before(cur.End) {
				cur.Start = rm.End
			} else {
				cur = Interval{}
				break
			}
		}
		if !cur.Empty() {
			out = append(out, cur)
		}
	}
	return out
}

// Intersect returns the normalized set of instants present in both a and b.
func Intersect(a, b []Interval) []Interval {
	x := Normalize(a)
	y := Normalize(b)
	out := make([]Interval, 0)
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		start := laterOf(x[i].Start, y[j].Start)
		end := earlierOf(x[i].End, y[j].End)
		if end.After(start) {
			out = append(out, Interval{Start: start, End: end})
		}
		if x[i].End.Before(y[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}

// Total sums the covered duration of the set after normalization.
func Total(ivs []Interval) time.Duration {
	var sum time.Duration
	for _, iv := range Normalize(ivs) {
		sum += iv.Duration()
	}
	return sum
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
