package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wellfront/scheduling-engine/internal/schedule"
)

// GetProviderSettings loads per-provider booking defaults;
// schedule.ErrNotFound when the provider has no row.
func (s *Store) GetProviderSettings(ctx context.Context, providerID uuid.UUID) (*schedule.ProviderSettings, error) {
	settings := &schedule.ProviderSettings{ProviderID: providerID}
	err := s.db.QueryRow(ctx, `
		SELECT timezone, slot_duration_minutes, buffer_minutes, min_lead_minutes, updated_at
		FROM provider_schedule_settings
		WHERE provider_id = $1`, providerID).Scan(
		&settings.Timezone,
		&settings.SlotDurationMinutes,
		&settings.BufferMinutes,
		&settings.MinLeadMinutes,
		&settings.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get settings: %w", err)
	}
	return settings, nil
}
