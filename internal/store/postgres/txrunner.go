package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellfront/scheduling-engine/internal/booking"
	"github.com/wellfront/scheduling-engine/internal/events"
	"github.com/wellfront/scheduling-engine/internal/schedule"
	"github.com/wellfront/scheduling-engine/pkg/logging"
)

// BookingTx owns the per-provider serialization point: an advisory lock
// scoped to the booking transaction. Different providers never contend.
type BookingTx struct {
	db          Pool
	lockTimeout time.Duration
	logger      *logging.Logger
}

// NewBookingTx creates the transaction runner on a pgx pool.
func NewBookingTx(pool *pgxpool.Pool, logger *logging.Logger) *BookingTx {
	if pool == nil {
		panic("postgres: pgx pool required")
	}
	return newBookingTxWithPool(pool, logger)
}

func newBookingTxWithPool(db Pool, logger *logging.Logger) *BookingTx {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingTx{
		db:          db,
		lockTimeout: 5 * time.Second,
		logger:      logger.Component("bookingtx"),
	}
}

// WithLockTimeout bounds the wait for a provider's lock.
func (b *BookingTx) WithLockTimeout(d time.Duration) *BookingTx {
	if d > 0 {
		b.lockTimeout = d
	}
	return b
}

// InTx runs fn inside a transaction holding the provider's advisory lock.
// Waiting past the bound returns schedule.ErrLockTimeout; an error from fn
// rolls everything back, outbox writes included.
func (b *BookingTx) InTx(ctx context.Context, providerID uuid.UUID, fn func(booking.TxStore) error) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin booking tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET does not take bind parameters; the value is a config duration.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", b.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("postgres: set lock timeout: %w", err)
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(providerID)); err != nil {
		if isLockTimeout(err) {
			b.logger.Warn("provider lock wait timed out", "provider_id", providerID, "timeout", b.lockTimeout)
			return fmt.Errorf("postgres: provider %s lock: %w", providerID, schedule.ErrLockTimeout)
		}
		return fmt.Errorf("postgres: acquire provider lock: %w", err)
	}

	if err := fn(&txStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit booking tx: %w", err)
	}
	return nil
}

// lockKey folds the provider UUID onto the advisory lock keyspace.
func lockKey(providerID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(providerID[:])
	return int64(h.Sum64())
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "55P03"
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// txStore exposes the booking store surface over one open transaction.
type txStore struct {
	db pgx.Tx
}

func (t *txStore) GetAppointments(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []schedule.AppointmentStatus) ([]schedule.Appointment, error) {
	return queryAppointments(ctx, t.db, providerID, rangeStart, rangeEnd, statuses)
}

func (t *txStore) InsertAppointment(ctx context.Context, appt *schedule.Appointment) error {
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	_, err := t.db.Exec(ctx, `
		INSERT INTO appointments (id, provider_id, patient_id, starts_at, ends_at, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		appt.ID, appt.ProviderID, appt.PatientID, appt.StartsAt, appt.EndsAt,
		string(appt.Status), appt.Notes, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return fmt.Errorf("postgres: appointment overlap: %w", schedule.ErrSlotUnavailable)
		}
		return fmt.Errorf("postgres: insert appointment: %w", err)
	}
	return nil
}

func (t *txStore) UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, from, to schedule.AppointmentStatus, reason string, at time.Time) (*schedule.Appointment, error) {
	var cancelledAt any
	if to == schedule.StatusCancelled {
		cancelledAt = at
	}
	row := t.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $1, cancel_reason = $2, cancelled_at = $3, updated_at = $4
		WHERE id = $5 AND status = $6
		RETURNING `+appointmentColumns,
		string(to), reason, cancelledAt, at, appointmentID, string(from))
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var status string
		lookupErr := t.db.QueryRow(ctx, `
			SELECT status FROM appointments WHERE id = $1`, appointmentID).Scan(&status)
		if errors.Is(lookupErr, pgx.ErrNoRows) {
			return nil, schedule.ErrNotFound
		}
		if lookupErr != nil {
			return nil, fmt.Errorf("postgres: inspect appointment: %w", lookupErr)
		}
		return nil, fmt.Errorf("postgres: appointment is %s: %w", status, schedule.ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: update appointment status: %w", err)
	}
	return appt, nil
}

func (t *txStore) RecordEvent(ctx context.Context, providerID uuid.UUID, eventType string, payload any) error {
	_, err := events.InsertTx(ctx, t.db, providerID, eventType, payload)
	return err
}
