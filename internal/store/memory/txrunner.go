package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wellfront/scheduling-engine/internal/booking"
	"github.com/wellfront/scheduling-engine/internal/events"
	"github.com/wellfront/scheduling-engine/internal/schedule"
)

// TxRunner serializes bookings per provider with an in-process lock. It is
// the memory twin of the advisory-lock transaction runner: writes stage
// until fn returns and apply atomically, or vanish when fn errors.
type TxRunner struct {
	store       *Store
	lockTimeout time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]chan struct{}
}

// NewTxRunner creates the transaction runner over an in-memory store.
func NewTxRunner(store *Store) *TxRunner {
	if store == nil {
		panic("memory: store required")
	}
	return &TxRunner{
		store:       store,
		lockTimeout: 5 * time.Second,
		locks:       make(map[uuid.UUID]chan struct{}),
	}
}

// WithLockTimeout bounds the wait for a provider's lock.
func (r *TxRunner) WithLockTimeout(d time.Duration) *TxRunner {
	if d > 0 {
		r.lockTimeout = d
	}
	return r
}

// InTx runs fn holding the provider's lock. Waiting past the bound returns
// schedule.ErrLockTimeout.
func (r *TxRunner) InTx(ctx context.Context, providerID uuid.UUID, fn func(booking.TxStore) error) error {
	lock := r.providerLock(providerID)

	timer := time.NewTimer(r.lockTimeout)
	defer timer.Stop()
	select {
	case lock <- struct{}{}:
	case <-timer.C:
		return fmt.Errorf("memory: provider %s lock: %w", providerID, schedule.ErrLockTimeout)
	case <-ctx.Done():
		return fmt.Errorf("memory: provider %s lock: %w", providerID, ctx.Err())
	}
	defer func() { <-lock }()

	tx := &memTx{store: r.store}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r *TxRunner) providerLock(providerID uuid.UUID) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[providerID]
	if !ok {
		lock = make(chan struct{}, 1)
		r.locks[providerID] = lock
	}
	return lock
}

// memTx stages writes for one guarded booking transaction. Reads see
// committed state overlaid with the transaction's own staged writes.
type memTx struct {
	store   *Store
	inserts []schedule.Appointment
	updates []schedule.Appointment
	entries []events.OutboxEntry
}

func (t *memTx) GetAppointments(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time, statuses []schedule.AppointmentStatus) ([]schedule.Appointment, error) {
	t.store.mu.RLock()
	out := t.store.appointmentsLocked(providerID, rangeStart, rangeEnd, statuses)
	t.store.mu.RUnlock()

	for _, u := range t.updates {
		for i := len(out) - 1; i >= 0; i-- {
			if out[i].ID != u.ID {
				continue
			}
			if statusIn(u.Status, statuses) {
				out[i] = u
			} else {
				out = append(out[:i], out[i+1:]...)
			}
		}
	}
	for _, a := range t.inserts {
		if a.ProviderID != providerID || !statusIn(a.Status, statuses) {
			continue
		}
		if !a.StartsAt.Before(rangeEnd) || !a.EndsAt.After(rangeStart) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

func (t *memTx) InsertAppointment(ctx context.Context, appt *schedule.Appointment) error {
	if appt.Status.Blocking() {
		occupied, err := t.GetAppointments(ctx, appt.ProviderID, appt.StartsAt, appt.EndsAt, schedule.BlockingStatuses)
		if err != nil {
			return err
		}
		if len(occupied) > 0 {
			return fmt.Errorf("memory: appointment overlap: %w", schedule.ErrSlotUnavailable)
		}
	}

	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	t.inserts = append(t.inserts, *appt)
	return nil
}

func (t *memTx) UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, from, to schedule.AppointmentStatus, reason string, at time.Time) (*schedule.Appointment, error) {
	current, ok := t.lookup(appointmentID)
	if !ok {
		return nil, schedule.ErrNotFound
	}
	if current.Status != from {
		return nil, fmt.Errorf("memory: appointment is %s: %w", current.Status, schedule.ErrInvalidTransition)
	}

	current.Status = to
	current.CancelReason = reason
	current.CancelledAt = nil
	if to == schedule.StatusCancelled {
		cancelledAt := at
		current.CancelledAt = &cancelledAt
	}
	current.UpdatedAt = at
	t.updates = append(t.updates, current)

	cpy := current
	return &cpy, nil
}

func (t *memTx) RecordEvent(ctx context.Context, providerID uuid.UUID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("memory: marshal %s payload: %w", eventType, err)
	}
	t.entries = append(t.entries, events.OutboxEntry{
		ID:         uuid.New(),
		ProviderID: providerID,
		Type:       eventType,
		Payload:    body,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

func (t *memTx) lookup(appointmentID uuid.UUID) (schedule.Appointment, bool) {
	for i := len(t.updates) - 1; i >= 0; i-- {
		if t.updates[i].ID == appointmentID {
			return t.updates[i], true
		}
	}
	for _, a := range t.inserts {
		if a.ID == appointmentID {
			return a, true
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	a, ok := t.store.appointments[appointmentID]
	return a, ok
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, a := range t.inserts {
		t.store.appointments[a.ID] = a
	}
	for _, a := range t.updates {
		t.store.appointments[a.ID] = a
	}
	t.store.feed = append(t.store.feed, t.entries...)
}
