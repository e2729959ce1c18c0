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

// GetWeeklyTemplate loads a provider's weekly working hours;
// schedule.ErrNotFound when the provider has no template.
func (s *Store) GetWeeklyTemplate(ctx context.Context, providerID uuid.UUID) (*schedule.WeeklyTemplate, error) {
	tpl := &schedule.WeeklyTemplate{ProviderID: providerID}
	err := s.db.QueryRow(ctx, `
		SELECT timezone, updated_at
		FROM provider_schedule
		WHERE provider_id = $1`, providerID).Scan(&tpl.Timezone, &tpl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get schedule: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT weekday, active, start_minute, end_minute
		FROM provider_weekly_hours
		WHERE provider_id = $1
		ORDER BY weekday`, providerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get weekly hours: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var weekday int16
		var active bool
		var startMinute, endMinute int
		if err := rows.Scan(&weekday, &active, &startMinute, &endMinute); err != nil {
			return nil, fmt.Errorf("postgres: scan weekly hours: %w", err)
		}
		if weekday < 0 || weekday > 6 {
			continue
		}
		tpl.Days[weekday] = schedule.DayHours{
			Active: active,
			Start:  timeOfDay(startMinute),
			End:    timeOfDay(endMinute),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read weekly hours: %w", err)
	}
	return tpl, nil
}

// SaveWeeklyTemplate replaces the provider's whole week in one transaction
// so readers never see a half-replaced template.
func (s *Store) SaveWeeklyTemplate(ctx context.Context, tpl *schedule.WeeklyTemplate) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin template save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		INSERT INTO provider_schedule (provider_id, timezone, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_id) DO UPDATE
		SET timezone = EXCLUDED.timezone, updated_at = EXCLUDED.updated_at`,
		tpl.ProviderID, tpl.Timezone, now,
	); err != nil {
		return fmt.Errorf("postgres: upsert schedule: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM provider_weekly_hours WHERE provider_id = $1`, tpl.ProviderID,
	); err != nil {
		return fmt.Errorf("postgres: clear weekly hours: %w", err)
	}

	for weekday, day := range tpl.Days {
		if _, err := tx.Exec(ctx, `
			INSERT INTO provider_weekly_hours (provider_id, weekday, active, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)`,
			tpl.ProviderID, int16(weekday), day.Active, day.Start.MinuteOfDay(), day.End.MinuteOfDay(),
		); err != nil {
			return fmt.Errorf("postgres: insert weekly hours: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit template save: %w", err)
	}
	tpl.UpdatedAt = now
	return nil
}
