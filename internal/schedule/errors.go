package schedule

import "errors"

// Sentinel errors of the resolution and booking pipeline. Callers match
// with errors.Is; wrapping adds operation context.
var (
	// ErrInvalidRange rejects a malformed or oversized query range.
	ErrInvalidRange = errors.New("invalid range")

	// ErrInvalidTemplate rejects inconsistent schedule data (inverted
	// windows, unresolvable timezone, bad recurrence tags).
	ErrInvalidTemplate = errors.New("invalid template")

	// ErrSlotUnavailable is the expected loss of a booking race or an
	// attempt to book a slot the pipeline no longer offers.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrLockTimeout reports that the per-provider serialization point
	// could not be acquired within the configured bound.
	ErrLockTimeout = errors.New("booking lock timeout")

	// ErrUpstreamUnavailable wraps collaborator store failures. The engine
	// does not retry; callers decide.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotFound reports a missing entity (template, appointment,
	// override) rather than a store failure.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition rejects a status change the appointment
	// lifecycle does not allow, such as completing a cancelled visit.
	ErrInvalidTransition = errors.New("invalid status transition")
)
