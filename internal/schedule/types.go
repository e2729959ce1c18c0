// Package schedule resolves provider availability: it expands weekly
// working-hour templates, reconciles override and blackout periods, cuts the
// remaining time into bookable slots and filters out conflicts with existing
// appointments.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellfront/scheduling-engine/internal/interval"
)

// TimeOfDay is a wall-clock minute within a day. It carries no date or
// location; combining it with both happens at template expansion time so
// that DST transitions resolve per concrete date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "15:04" formatted wall-clock times.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var tod TimeOfDay
	if err := tod.UnmarshalText([]byte(s)); err != nil {
		return TimeOfDay{}, err
	}
	return tod, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MinuteOfDay returns minutes elapsed since local midnight.
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.MinuteOfDay() < other.MinuteOfDay()
}

// On pins the wall-clock time to a concrete date in loc. Times that do not
// exist on that date (spring-forward gaps) normalize per time.Date.
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler as "15:04".
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	var h, m int
	if _, err := fmt.Sscanf(string(b), "%d:%d", &h, &m); err != nil {
		return fmt.Errorf("schedule: parse time of day %q: %w", b, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("schedule: time of day %q out of range", b)
	}
	t.Hour, t.Minute = h, m
	return nil
}

// Date is a civil calendar date without time or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "2006-01-02" formatted dates.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("schedule: parse date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the civil date of instant t observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// In returns local midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n calendar days later (negative n steps back).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Weekday returns the day of week of the date.
func (d Date) Weekday() time.Weekday {
	return d.In(time.UTC).Weekday()
}

// Before reports calendar ordering.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// After reports calendar ordering.
func (d Date) After(other Date) bool {
	return other.Before(d)
}

// MarshalText implements encoding.TextMarshaler as "2006-01-02".
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DayHours is one weekday's working window inside a WeeklyTemplate.
type DayHours struct {
	Active bool      `json:"active"` // provider works this weekday
	Start  TimeOfDay `json:"start"`  // inclusive wall-clock start, "09:00"
	End    TimeOfDay `json:"end"`    // exclusive wall-clock end
}

// WeeklyTemplate is a provider's recurring weekly working hours, expressed
// as wall-clock windows in the provider's IANA timezone.
type WeeklyTemplate struct {
	ProviderID uuid.UUID   `json:"provider_id"`
	Timezone   string      `json:"timezone"` // IANA zone name, e.g. "America/Denver"
	Days       [7]DayHours `json:"days"`     // indexed by time.Weekday (Sunday = 0)
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Location resolves the template timezone.
func (t *WeeklyTemplate) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule: template timezone %q: %w", t.Timezone, ErrInvalidTemplate)
	}
	return loc, nil
}

// Validate checks every active day has a positive-length window and the
// timezone resolves.
func (t *WeeklyTemplate) Validate() error {
	if _, err := t.Location(); err != nil {
		return err
	}
	for wd, day := range t.Days {
		if !day.Active {
			continue
		}
		if !day.Start.Before(day.End) {
			return fmt.Errorf("schedule: %s window %s-%s: %w",
				time.Weekday(wd), day.Start, day.End, ErrInvalidTemplate)
		}
	}
	return nil
}

// OverrideBlock is an ad-hoc availability addition. Exactly one of Weekday
// (recurring every week) or Date (single occurrence) is set. Overrides only
// ever add time; they never modify the base template.
type OverrideBlock struct {
	ID         uuid.UUID     `json:"id"`
	ProviderID uuid.UUID     `json:"provider_id"`
	Weekday    *time.Weekday `json:"weekday,omitempty"` // recurring form, 0 = Sunday
	Date       *Date         `json:"date,omitempty"`    // one-time form
	Start      TimeOfDay     `json:"start"`
	End        TimeOfDay     `json:"end"`
	Note       string        `json:"note,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Recurring reports whether the block repeats weekly.
func (o *OverrideBlock) Recurring() bool {
	return o.Weekday != nil
}

// Validate enforces the recurrence tag and window ordering.
func (o *OverrideBlock) Validate() error {
	if (o.Weekday == nil) == (o.Date == nil) {
		return fmt.Errorf("schedule: override needs exactly one of weekday or date: %w", ErrInvalidTemplate)
	}
	if !o.Start.Before(o.End) {
		return fmt.Errorf("schedule: override window %s-%s: %w", o.Start, o.End, ErrInvalidTemplate)
	}
	return nil
}

// BlackoutPeriod removes provider time with the highest priority. It is
// either a whole-day span (StartDate..EndDate inclusive, expanded in the
// provider's timezone) or an instant span [StartsAt, EndsAt).
type BlackoutPeriod struct {
	ID         uuid.UUID  `json:"id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	Reason     string     `json:"reason,omitempty"`
	StartDate  *Date      `json:"start_date,omitempty"` // whole-day form
	EndDate    *Date      `json:"end_date,omitempty"`
	StartsAt   *time.Time `json:"starts_at,omitempty"` // instant form
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// WholeDay reports whether the blackout uses the date form.
func (b *BlackoutPeriod) WholeDay() bool {
	return b.StartDate != nil
}

// Validate enforces exactly one span form with correct ordering.
func (b *BlackoutPeriod) Validate() error {
	dateForm := b.StartDate != nil && b.EndDate != nil
	instantForm := b.StartsAt != nil && b.EndsAt != nil
	if dateForm == instantForm {
		return fmt.Errorf("schedule: blackout needs exactly one of date span or instant span: %w", ErrInvalidTemplate)
	}
	if dateForm && b.EndDate.Before(*b.StartDate) {
		return fmt.Errorf("schedule: blackout dates %s..%s inverted: %w", b.StartDate, b.EndDate, ErrInvalidTemplate)
	}
	if instantForm && !b.EndsAt.After(*b.StartsAt) {
		return fmt.Errorf("schedule: blackout instants inverted: %w", ErrInvalidTemplate)
	}
	return nil
}

// AppointmentStatus is the lifecycle state of an appointment. Appointments
// are never deleted; cancellation and no-show are soft states that release
// the occupied time.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Blocking reports whether the status occupies provider time.
func (s AppointmentStatus) Blocking() bool {
	return s == StatusScheduled || s == StatusCompleted
}

// ParseAppointmentStatus validates a status string from the wire.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch AppointmentStatus(s) {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return AppointmentStatus(s), nil
	}
	return "", fmt.Errorf("schedule: unknown appointment status %q", s)
}

// BlockingStatuses are the statuses the conflict filter considers occupied.
var BlockingStatuses = []AppointmentStatus{StatusScheduled, StatusCompleted}

// Appointment is a booked visit occupying [StartsAt, EndsAt).
type Appointment struct {
	ID           uuid.UUID         `json:"id"`
	ProviderID   uuid.UUID         `json:"provider_id"`
	PatientID    uuid.UUID         `json:"patient_id"`
	StartsAt     time.Time         `json:"starts_at"`
	EndsAt       time.Time         `json:"ends_at"`
	Status       AppointmentStatus `json:"status"`
	Notes        string            `json:"notes,omitempty"`
	CancelReason string            `json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Interval returns the occupied range.
func (a *Appointment) Interval() interval.Interval {
	return interval.Interval{Start: a.StartsAt, End: a.EndsAt}
}

// SlotQuery asks for open slots for one provider over an instant range.
type SlotQuery struct {
	ProviderID          uuid.UUID
	RangeStart          time.Time
	RangeEnd            time.Time
	SlotDurationMinutes int
	BufferMinutes       int // cleanup gap appended after each slot
	MinLeadMinutes      int // slots starting sooner than now+lead are hidden
}

// SlotDuration returns the slot length.
func (q SlotQuery) SlotDuration() time.Duration {
	return time.Duration(q.SlotDurationMinutes) * time.Minute
}

// Buffer returns the post-slot gap.
func (q SlotQuery) Buffer() time.Duration {
	return time.Duration(q.BufferMinutes) * time.Minute
}

// MinLead returns the minimum booking lead.
func (q SlotQuery) MinLead() time.Duration {
	return time.Duration(q.MinLeadMinutes) * time.Minute
}

// Validate rejects malformed queries before any computation. maxRange
// bounds the queryable span; zero means unbounded.
func (q SlotQuery) Validate(maxRange time.Duration) error {
	if q.ProviderID == uuid.Nil {
		return fmt.Errorf("schedule: provider id required: %w", ErrInvalidRange)
	}
	if !q.RangeEnd.After(q.RangeStart) {
		return fmt.Errorf("schedule: range end %s not after start %s: %w",
			q.RangeEnd.Format(time.RFC3339), q.RangeStart.Format(time.RFC3339), ErrInvalidRange)
	}
	if maxRange > 0 && q.RangeEnd.Sub(q.RangeStart) > maxRange {
		return fmt.Errorf("schedule: range exceeds %s: %w", maxRange, ErrInvalidRange)
	}
	if q.SlotDurationMinutes <= 0 {
		return fmt.Errorf("schedule: slot duration %d must be positive: %w", q.SlotDurationMinutes, ErrInvalidRange)
	}
	if q.BufferMinutes < 0 {
		return fmt.Errorf("schedule: buffer %d must not be negative: %w", q.BufferMinutes, ErrInvalidRange)
	}
	if q.MinLeadMinutes < 0 {
		return fmt.Errorf("schedule: min lead %d must not be negative: %w", q.MinLeadMinutes, ErrInvalidRange)
	}
	return nil
}

// Slot is one bookable opening. Slots are derived values and carry no
// identity; booking addresses a slot by provider and start instant.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ProviderSettings are per-provider booking defaults applied when a query
// or booking request leaves them unset.
type ProviderSettings struct {
	ProviderID          uuid.UUID
	SlotDurationMinutes int
	BufferMinutes       int
	MinLeadMinutes      int
	Timezone            string
	UpdatedAt           time.Time
}

// BookingStats aggregates one provider's appointment counts for the admin
// dashboard. ShowRatePct is completed over completed+no-shows.
type BookingStats struct {
	ProviderID  uuid.UUID `json:"provider_id"`
	Scheduled   int64     `json:"scheduled"`
	Completed   int64     `json:"completed"`
	Cancelled   int64     `json:"cancelled"`
	NoShows     int64     `json:"no_shows"`
	ShowRatePct float64   `json:"show_rate_pct"`
}
