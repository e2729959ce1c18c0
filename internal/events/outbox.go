// Package events persists booking lifecycle events in a transactional
// outbox and delivers them to downstream handlers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellfront/scheduling-engine/pkg/logging"
)

// Event types written by the booking service.
const (
	TypeBookingCommitted     = "booking.committed"
	TypeBookingCancelled     = "booking.cancelled"
	TypeAppointmentCompleted = "appointment.completed"
	TypeAppointmentNoShow    = "appointment.no_show"
)

// AppointmentEvent is the payload carried by appointment lifecycle events.
type AppointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
}

// DB is the pgx surface the store needs; pools and transactions both
// satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Type       string
	Payload    json.RawMessage
	CreatedAt  time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// OutboxStore persists events for reliable delivery.
type OutboxStore struct {
	db DB
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{db: pool}
}

func newOutboxStoreWithExec(db DB) *OutboxStore {
	if db == nil {
		panic("events: exec required")
	}
	return &OutboxStore{db: db}
}

// Insert appends an event on the store's own connection.
func (s *OutboxStore) Insert(ctx context.Context, providerID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	return InsertTx(ctx, s.db, providerID, eventType, payload)
}

// InsertTx appends an event through the caller's transaction so the event
// commits and rolls back with the booking it describes.
func InsertTx(ctx context.Context, tx DB, providerID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, provider_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, query, id, providerID, eventType, data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, provider_id, type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.ProviderID, &entry.Type, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     *OutboxStore
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store *OutboxStore, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger.Component("deliverer"),
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Deliverer) drain(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type)
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
}

// LogHandler emits events as structured log records. Actual fan-out to
// calendars or notification systems belongs to external consumers; the log
// stream doubles as the local event feed.
type LogHandler struct {
	logger *logging.Logger
}

func NewLogHandler(logger *logging.Logger) *LogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogHandler{logger: logger.Component("events")}
}

func (h *LogHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	h.logger.Info("event emitted",
		"event_id", entry.ID,
		"type", entry.Type,
		"provider_id", entry.ProviderID,
		"payload", string(entry.Payload),
	)
	return nil
}
