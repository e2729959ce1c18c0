// Package postgres backs the schedule and booking contracts with pgx.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellfront/scheduling-engine/internal/schedule"
)

// DB is the pgx query surface shared by pools and transactions.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool adds transaction control to DB. *pgxpool.Pool satisfies it.
type Pool interface {
	DB
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements the schedule collaborator contracts on Postgres.
type Store struct {
	db Pool
}

// NewStore creates a store on a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("postgres: pgx pool required")
	}
	return &Store{db: pool}
}

func newStoreWithPool(db Pool) *Store {
	if db == nil {
		panic("postgres: pool required")
	}
	return &Store{db: db}
}

func timeOfDay(minute int) schedule.TimeOfDay {
	return schedule.TimeOfDay{Hour: minute / 60, Minute: minute % 60}
}

func nullWeekday(w *time.Weekday) any {
	if w == nil {
		return nil
	}
	return int16(*w)
}

func nullDate(d *schedule.Date) any {
	if d == nil {
		return nil
	}
	return d.In(time.UTC)
}
