package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wellfront/scheduling-engine/internal/schedule"
)

const appointmentColumns = `id, provider_id, patient_id, starts_at, ends_at, status, notes, cancel_reason, cancelled_at, created_at, updated_at`

// GetAppointments returns appointments overlapping the half-open range with
// one of the given statuses, ordered by start. Touching ranges do not count
// as overlap.
func (s *Store) GetAppointments(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []schedule.AppointmentStatus) ([]schedule.Appointment, error) {
	return queryAppointments(ctx, s.db, providerID, rangeStart, rangeEnd, statuses)
}

// GetAppointment loads one appointment; schedule.ErrNotFound when absent.
func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get appointment: %w", err)
	}
	return appt, nil
}

// DashboardStats returns per-provider appointment counts for appointments
// created since the cutoff.
func (s *Store) DashboardStats(ctx context.Context, since time.Time) ([]schedule.BookingStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT provider_id,
			COUNT(*) FILTER (WHERE status = 'scheduled') AS scheduled,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
			COUNT(*) FILTER (WHERE status = 'no_show') AS no_shows
		FROM appointments
		WHERE created_at >= $1
		GROUP BY provider_id
		ORDER BY provider_id`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: dashboard stats: %w", err)
	}
	defer rows.Close()

	var stats []schedule.BookingStats
	for rows.Next() {
		var st schedule.BookingStats
		if err := rows.Scan(&st.ProviderID, &st.Scheduled, &st.Completed, &st.Cancelled, &st.NoShows); err != nil {
			return nil, fmt.Errorf("postgres: scan stats: %w", err)
		}
		if done := st.Completed + st.NoShows; done > 0 {
			st.ShowRatePct = float64(st.Completed) / float64(done) * 100
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func queryAppointments(ctx context.Context, db DB, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []schedule.AppointmentStatus) ([]schedule.Appointment, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND starts_at < $3 AND ends_at > $2 AND status = ANY($4)
		ORDER BY starts_at`, providerID, rangeStart, rangeEnd, names)
	if err != nil {
		return nil, fmt.Errorf("postgres: list appointments: %w", err)
	}
	defer rows.Close()

	var appts []schedule.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan appointment: %w", err)
		}
		appts = append(appts, *appt)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (*schedule.Appointment, error) {
	var a schedule.Appointment
	var status string
	err := row.Scan(
		&a.ID, &a.ProviderID, &a.PatientID, &a.StartsAt, &a.EndsAt,
		&status, &a.Notes, &a.CancelReason, &a.CancelledAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = schedule.AppointmentStatus(status)
	return &a, nil
}
