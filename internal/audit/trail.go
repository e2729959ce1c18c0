// Package audit records an immutable trail of booking decisions.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Action identifies what happened to a booking or schedule.
type Action string

const (
	// ActionBookingRequested is recorded when a booking attempt starts.
	ActionBookingRequested Action = "booking.requested"
	// ActionBookingCommitted is recorded when a booking survives the conflict check.
	ActionBookingCommitted Action = "booking.committed"
	// ActionBookingRejected is recorded when a booking loses the slot race.
	ActionBookingRejected Action = "booking.rejected"
	// ActionBookingCancelled is recorded when a scheduled appointment is cancelled.
	ActionBookingCancelled Action = "booking.cancelled"
	// ActionAppointmentCompleted is recorded when an appointment is marked done.
	ActionAppointmentCompleted Action = "appointment.completed"
	// ActionAppointmentNoShow is recorded when a patient misses an appointment.
	ActionAppointmentNoShow Action = "appointment.no_show"
	// ActionScheduleChanged is recorded when templates, overrides or blackouts change.
	ActionScheduleChanged Action = "schedule.changed"
)

// Entry is one immutable audit record.
type Entry struct {
	ID            string          `json:"id"`
	Action        Action          `json:"action"`
	ProviderID    uuid.UUID       `json:"provider_id"`
	AppointmentID uuid.UUID       `json:"appointment_id,omitempty"`
	PatientID     uuid.UUID       `json:"patient_id,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	Detail        json.RawMessage `json:"detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Detail carries action-specific context.
type Detail struct {
	SlotStart *time.Time `json:"slot_start,omitempty"`
	SlotEnd   *time.Time `json:"slot_end,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Result    string     `json:"result,omitempty"`
	Changed   string     `json:"changed,omitempty"`
}

// Trail persists and queries audit entries.
type Trail struct {
	db *sql.DB
}

// NewTrail creates an audit trail backed by the given database.
func NewTrail(db *sql.DB) *Trail {
	return &Trail{db: db}
}

// Record stores an audit entry, filling ID and timestamp when absent.
func (t *Trail) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO booking_audit (
			id, action, provider_id, appointment_id, patient_id,
			actor, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := t.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.ProviderID,
		nullUUID(entry.AppointmentID),
		nullUUID(entry.PatientID),
		nullString(entry.Actor),
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record entry: %w", err)
	}

	return nil
}

// RecordBooking stores a booking lifecycle entry with slot context.
func (t *Trail) RecordBooking(ctx context.Context, action Action, providerID, appointmentID, patientID uuid.UUID, actor string, detail Detail) error {
	detailJSON, _ := json.Marshal(detail)

	return t.Record(ctx, Entry{
		Action:        action,
		ProviderID:    providerID,
		AppointmentID: appointmentID,
		PatientID:     patientID,
		Actor:         actor,
		Detail:        detailJSON,
	})
}

// RecordScheduleChange stores an entry describing an admin schedule edit.
func (t *Trail) RecordScheduleChange(ctx context.Context, providerID uuid.UUID, actor, changed string) error {
	detailJSON, _ := json.Marshal(Detail{Changed: changed})

	return t.Record(ctx, Entry{
		Action:     ActionScheduleChanged,
		ProviderID: providerID,
		Actor:      actor,
		Detail:     detailJSON,
	})
}

// Query retrieves audit entries matching the filter, newest first.
func (t *Trail) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT id, action, provider_id, appointment_id, patient_id,
			   actor, detail, created_at
		FROM booking_audit
		WHERE provider_id = $1
	`
	args := []interface{}{filter.ProviderID}
	argIdx := 2

	if filter.AppointmentID != uuid.Nil {
		query += fmt.Sprintf(" AND appointment_id = $%d", argIdx)
		args = append(args, filter.AppointmentID)
		argIdx++
	}
	if len(filter.Actions) > 0 {
		query += fmt.Sprintf(" AND action = ANY($%d)", argIdx)
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		args = append(args, pq.Array(actions))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var actor sql.NullString
		err := rows.Scan(
			&e.ID, &e.Action, &e.ProviderID, &e.AppointmentID, &e.PatientID,
			&actor, &e.Detail, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		e.Actor = actor.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Filter specifies criteria for querying audit entries.
type Filter struct {
	ProviderID    uuid.UUID
	AppointmentID uuid.UUID
	Actions       []Action
	Since         time.Time
	Until         time.Time
	Limit         int
	Offset        int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullUUID(id uuid.UUID) interface{} {
	if id == uuid.Nil {
		return nil
	}
	return id
}
