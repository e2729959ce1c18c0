package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wellfront/scheduling-engine/internal/audit"
	"github.com/wellfront/scheduling-engine/internal/events"
	"github.com/wellfront/scheduling-engine/internal/observability/metrics"
	"github.com/wellfront/scheduling-engine/internal/schedule"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

var bookingTracer = otel.Tracer("wellfront.internal.booking")

// Service runs the reservation guard around every appointment mutation.
type Service struct {
	calendar Calendar
	runner   TxRunner
	lookup   AppointmentLookup
	trail    AuditLog
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewService constructs a booking service.
func NewService(calendar Calendar, runner TxRunner, lookup AppointmentLookup, logger *logging.Logger) *Service {
	if calendar == nil || runner == nil || lookup == nil {
		panic("booking: calendar, tx runner and appointment lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		calendar: calendar,
		runner:   runner,
		lookup:   lookup,
		logger:   logger.Component("booking"),
		now:      time.Now,
	}
}

// WithAudit attaches the audit trail.
func (s *Service) WithAudit(trail AuditLog) *Service {
	s.trail = trail
	return s
}

// WithMetrics attaches engine metrics.
func (s *Service) WithMetrics(m *metrics.EngineMetrics) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the time source; tests pin it.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Book commits one appointment. Inside the provider's serialization point it
// re-resolves the slot's own window with appointment reads from the same
// transaction, so two racing requests for the last slot cannot both win.
// Losing the race is ErrSlotUnavailable, not a failure of the engine.
func (s *Service) Book(ctx context.Context, req BookRequest) (*schedule.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("wellfront.provider_id", req.ProviderID.String()),
		attribute.String("wellfront.slot_start", req.Start.Format(time.RFC3339)),
	)

	if err := req.validate(); err != nil {
		s.metrics.ObserveBooking("invalid", 0)
		return nil, err
	}

	defaults, err := s.calendar.ProviderDefaults(ctx, req.ProviderID)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking("error", 0)
		return nil, err
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = defaults.SlotDurationMinutes
	}
	if duration <= 0 {
		s.metrics.ObserveBooking("invalid", 0)
		return nil, fmt.Errorf("booking: no slot duration configured: %w", schedule.ErrInvalidRange)
	}
	start := req.Start
	end := start.Add(time.Duration(duration) * time.Minute)

	s.audit(ctx, audit.ActionBookingRequested, req.ProviderID, uuid.Nil, req.PatientID, "patient", audit.Detail{SlotStart: &start, SlotEnd: &end})

	snap, err := s.calendar.LoadCalendar(ctx, req.ProviderID, start, end)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking("error", 0)
		return nil, err
	}

	appt := &schedule.Appointment{
		ID:         uuid.New(),
		ProviderID: req.ProviderID,
		PatientID:  req.PatientID,
		StartsAt:   start,
		EndsAt:     end,
		Status:     schedule.StatusScheduled,
		Notes:      req.Notes,
	}

	lockStart := s.now()
	var lockWait time.Duration
	err = s.runner.InTx(ctx, req.ProviderID, func(tx TxStore) error {
		lockWait = s.now().Sub(lockStart)

		appts, err := tx.GetAppointments(ctx, req.ProviderID, start, end, schedule.BlockingStatuses)
		if err != nil {
			return err
		}
		snap.Appointments = appts

		q := schedule.SlotQuery{
			ProviderID:          req.ProviderID,
			RangeStart:          start,
			RangeEnd:            end,
			SlotDurationMinutes: duration,
			BufferMinutes:       defaults.BufferMinutes,
			MinLeadMinutes:      defaults.MinLeadMinutes,
		}
		slots, err := schedule.ResolveOpenSlots(*snap, q, s.now())
		if err != nil {
			return err
		}
		if !slotOffered(slots, start, end) {
			return fmt.Errorf("booking: slot at %s not open: %w", start.Format(time.RFC3339), schedule.ErrSlotUnavailable)
		}

		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return err
		}
		return tx.RecordEvent(ctx, req.ProviderID, events.TypeBookingCommitted, events.AppointmentEvent{
			AppointmentID: appt.ID,
			ProviderID:    appt.ProviderID,
			PatientID:     appt.PatientID,
			StartsAt:      appt.StartsAt,
			EndsAt:        appt.EndsAt,
			Status:        string(appt.Status),
		})
	})
	if err != nil {
		span.RecordError(err)
		result := classify(err)
		s.metrics.ObserveBooking(result, lockWait.Seconds())
		s.audit(ctx, audit.ActionBookingRejected, req.ProviderID, uuid.Nil, req.PatientID, "patient", audit.Detail{SlotStart: &start, SlotEnd: &end, Reason: result})
		if errors.Is(err, schedule.ErrSlotUnavailable) {
			s.logger.Info("booking lost slot race", "provider_id", req.ProviderID, "starts_at", start)
		} else {
			s.logger.Error("booking failed", "error", err, "provider_id", req.ProviderID, "starts_at", start)
		}
		return nil, err
	}

	s.calendar.InvalidateSlots(ctx, req.ProviderID)
	s.metrics.ObserveBooking("committed", lockWait.Seconds())
	s.audit(ctx, audit.ActionBookingCommitted, req.ProviderID, appt.ID, req.PatientID, "patient", audit.Detail{SlotStart: &start, SlotEnd: &end, Result: "committed"})
	s.logger.Info("booking committed",
		"provider_id", req.ProviderID,
		"appointment_id", appt.ID,
		"starts_at", start,
		"lock_wait_ms", lockWait.Milliseconds(),
	)
	return appt, nil
}

// Cancel soft-deletes a scheduled appointment. The slot reappears on the
// next resolution pass.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID, reason, actor string) (*schedule.Appointment, error) {
	return s.transition(ctx, appointmentID, schedule.StatusCancelled, reason, actor, events.TypeBookingCancelled, audit.ActionBookingCancelled)
}

// MarkCompleted records that the appointment took place. Completed
// appointments keep blocking their window.
func (s *Service) MarkCompleted(ctx context.Context, appointmentID uuid.UUID, actor string) (*schedule.Appointment, error) {
	return s.transition(ctx, appointmentID, schedule.StatusCompleted, "", actor, events.TypeAppointmentCompleted, audit.ActionAppointmentCompleted)
}

// MarkNoShow records that the patient missed the appointment. No-shows stop
// blocking the window.
func (s *Service) MarkNoShow(ctx context.Context, appointmentID uuid.UUID, actor string) (*schedule.Appointment, error) {
	return s.transition(ctx, appointmentID, schedule.StatusNoShow, "", actor, events.TypeAppointmentNoShow, audit.ActionAppointmentNoShow)
}

// transition applies a guarded status change from scheduled. The same
// serialization point as Book keeps status flips and slot re-checks ordered.
func (s *Service) transition(ctx context.Context, appointmentID uuid.UUID, to schedule.AppointmentStatus, reason, actor string, eventType string, action audit.Action) (*schedule.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("wellfront.appointment_id", appointmentID.String()),
		attribute.String("wellfront.to_status", string(to)),
	)

	current, err := s.lookup.GetAppointment(ctx, appointmentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var updated *schedule.Appointment
	err = s.runner.InTx(ctx, current.ProviderID, func(tx TxStore) error {
		var txErr error
		updated, txErr = tx.UpdateAppointmentStatus(ctx, appointmentID, schedule.StatusScheduled, to, reason, s.now())
		if txErr != nil {
			return txErr
		}
		return tx.RecordEvent(ctx, current.ProviderID, eventType, events.AppointmentEvent{
			AppointmentID: updated.ID,
			ProviderID:    updated.ProviderID,
			PatientID:     updated.PatientID,
			StartsAt:      updated.StartsAt,
			EndsAt:        updated.EndsAt,
			Status:        string(updated.Status),
			Reason:        reason,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.calendar.InvalidateSlots(ctx, current.ProviderID)
	s.audit(ctx, action, current.ProviderID, appointmentID, current.PatientID, actor, audit.Detail{Reason: reason, Result: string(to)})
	s.logger.Info("appointment status changed",
		"appointment_id", appointmentID,
		"provider_id", current.ProviderID,
		"status", string(to),
	)
	return updated, nil
}

func (s *Service) audit(ctx context.Context, action audit.Action, providerID, appointmentID, patientID uuid.UUID, actor string, detail audit.Detail) {
	if s.trail == nil {
		return
	}
	if err := s.trail.RecordBooking(ctx, action, providerID, appointmentID, patientID, actor, detail); err != nil {
		s.logger.Error("audit record failed", "error", err, "action", string(action))
	}
}

// slotOffered reports whether the resolved slots contain exactly the
// requested window.
func slotOffered(slots []schedule.Slot, start, end time.Time) bool {
	for _, slot := range slots {
		if slot.Start.Equal(start) && slot.End.Equal(end) {
			return true
		}
	}
	return false
}

func classify(err error) string {
	switch {
	case errors.Is(err, schedule.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, schedule.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, schedule.ErrInvalidRange), errors.Is(err, schedule.ErrInvalidTemplate):
		return "invalid"
	default:
		return "error"
	}
}
