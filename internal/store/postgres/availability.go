package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellfront/scheduling-engine/internal/schedule"
)

// GetOverrideBlocks returns the provider's override blocks that can touch
// the range. Recurring blocks always qualify; one-time blocks are kept with
// a day of slop on each side for timezone skew. The expander clips exactly.
func (s *Store) GetOverrideBlocks(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) ([]schedule.OverrideBlock, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, provider_id, weekday, on_date, start_minute, end_minute, note, created_at
		FROM availability_overrides
		WHERE provider_id = $1
		  AND (weekday IS NOT NULL
		       OR (on_date >= ($2::timestamptz)::date - 1 AND on_date <= ($3::timestamptz)::date + 1))
		ORDER BY created_at`, providerID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("postgres: list overrides: %w", err)
	}
	defer rows.Close()

	var blocks []schedule.OverrideBlock
	for rows.Next() {
		var o schedule.OverrideBlock
		var weekday *int16
		var onDate *time.Time
		var startMinute, endMinute int
		if err := rows.Scan(&o.ID, &o.ProviderID, &weekday, &onDate, &startMinute, &endMinute, &o.Note, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan override: %w", err)
		}
		if weekday != nil {
			wd := time.Weekday(*weekday)
			o.Weekday = &wd
		}
		if onDate != nil {
			d := schedule.DateOf(*onDate, time.UTC)
			o.Date = &d
		}
		o.Start = timeOfDay(startMinute)
		o.End = timeOfDay(endMinute)
		blocks = append(blocks, o)
	}
	return blocks, rows.Err()
}

// AddOverrideBlock inserts an override, assigning ID and timestamp when
// absent.
func (s *Store) AddOverrideBlock(ctx context.Context, block *schedule.OverrideBlock) error {
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO availability_overrides (id, provider_id, weekday, on_date, start_minute, end_minute, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		block.ID, block.ProviderID, nullWeekday(block.Weekday), nullDate(block.Date),
		block.Start.MinuteOfDay(), block.End.MinuteOfDay(), block.Note, block.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: add override: %w", err)
	}
	return nil
}

// RemoveOverrideBlock deletes an override scoped to its provider;
// schedule.ErrNotFound when no row matched.
func (s *Store) RemoveOverrideBlock(ctx context.Context, providerID, blockID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM availability_overrides WHERE provider_id = $1 AND id = $2`, providerID, blockID)
	if err != nil {
		return fmt.Errorf("postgres: remove override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// GetBlackoutPeriods returns the provider's blackouts that can touch the
// range, with the same day of slop as overrides for whole-day rows.
func (s *Store) GetBlackoutPeriods(ctx context.Context, providerID uuid.UUID, rangeStart, rangeEnd time.Time) ([]schedule.BlackoutPeriod, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, provider_id, reason, start_date, end_date, starts_at, ends_at, created_at
		FROM blackout_periods
		WHERE provider_id = $1
		  AND ((starts_at IS NOT NULL AND starts_at < $3 AND ends_at > $2)
		       OR (start_date IS NOT NULL
		           AND start_date <= ($3::timestamptz)::date + 1
		           AND end_date >= ($2::timestamptz)::date - 1))
		ORDER BY created_at`, providerID, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("postgres: list blackouts: %w", err)
	}
	defer rows.Close()

	var periods []schedule.BlackoutPeriod
	for rows.Next() {
		var b schedule.BlackoutPeriod
		var startDate, endDate *time.Time
		if err := rows.Scan(&b.ID, &b.ProviderID, &b.Reason, &startDate, &endDate, &b.StartsAt, &b.EndsAt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan blackout: %w", err)
		}
		if startDate != nil {
			d := schedule.DateOf(*startDate, time.UTC)
			b.StartDate = &d
		}
		if endDate != nil {
			d := schedule.DateOf(*endDate, time.UTC)
			b.EndDate = &d
		}
		periods = append(periods, b)
	}
	return periods, rows.Err()
}

// AddBlackoutPeriod inserts a blackout, assigning ID and timestamp when
// absent.
func (s *Store) AddBlackoutPeriod(ctx context.Context, period *schedule.BlackoutPeriod) error {
	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO blackout_periods (id, provider_id, reason, start_date, end_date, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		period.ID, period.ProviderID, period.Reason, nullDate(period.StartDate), nullDate(period.EndDate),
		period.StartsAt, period.EndsAt, period.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: add blackout: %w", err)
	}
	return nil
}

// RemoveBlackoutPeriod deletes a blackout scoped to its provider;
// schedule.ErrNotFound when no row matched.
func (s *Store) RemoveBlackoutPeriod(ctx context.Context, providerID, periodID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM blackout_periods WHERE provider_id = $1 AND id = $2`, providerID, periodID)
	if err != nil {
		return fmt.Errorf("postgres: remove blackout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}
