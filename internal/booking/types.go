// Package booking commits, cancels and resolves appointments through the
// per-provider reservation guard.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellfront/scheduling-engine/internal/audit"
	"github.com/wellfront/scheduling-engine/internal/schedule"
)

// BookRequest asks for one slot. A zero Duration takes the provider's
// default slot length.
type BookRequest struct {
	ProviderID      uuid.UUID `json:"provider_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

func (r BookRequest) validate() error {
	if r.ProviderID == uuid.Nil || r.PatientID == uuid.Nil {
		return fmt.Errorf("booking: provider and patient ids required: %w", schedule.ErrInvalidRange)
	}
	if r.Start.IsZero() {
		return fmt.Errorf("booking: start time required: %w", schedule.ErrInvalidRange)
	}
	if r.DurationMinutes < 0 || r.DurationMinutes > 24*60 {
		return fmt.Errorf("booking: duration out of range: %w", schedule.ErrInvalidRange)
	}
	return nil
}

// Calendar supplies schedule state and provider policy for the guard's
// narrow re-check. *schedule.Service satisfies it.
type Calendar interface {
	LoadCalendar(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) (*schedule.Snapshot, error)
	ProviderDefaults(ctx context.Context, providerID uuid.UUID) (schedule.Defaults, error)
	InvalidateSlots(ctx context.Context, providerID uuid.UUID)
}

// TxStore is the store surface visible inside a guarded transaction. Reads
// through it see the serialized state for the locked provider.
type TxStore interface {
	GetAppointments(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []schedule.AppointmentStatus) ([]schedule.Appointment, error)
	InsertAppointment(ctx context.Context, appt *schedule.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, from, to schedule.AppointmentStatus, reason string, at time.Time) (*schedule.Appointment, error)
	RecordEvent(ctx context.Context, providerID uuid.UUID, eventType string, payload any) error
}

// TxRunner owns the per-provider serialization point. InTx holds it for the
// duration of fn; an error from fn rolls the transaction back. Bookings for
// different providers never block each other.
type TxRunner interface {
	InTx(ctx context.Context, providerID uuid.UUID, fn func(TxStore) error) error
}

// AppointmentLookup reads single appointments outside a transaction.
type AppointmentLookup interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
}

// AuditLog records booking decisions. Failures are logged, never fatal.
// *audit.Trail satisfies it.
type AuditLog interface {
	RecordBooking(ctx context.Context, action audit.Action, providerID, appointmentID, patientID uuid.UUID, actor string, detail audit.Detail) error
}
