package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/wellfront/scheduling-engine/internal/schedule"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func expectMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetWeeklyTemplate(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)
	providerID := uuid.New()
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT timezone, updated_at").
		WithArgs(providerID).
		WillReturnRows(pgxmock.NewRows([]string{"timezone", "updated_at"}).AddRow("America/Denver", updated))

	hours := pgxmock.NewRows([]string{"weekday", "active", "start_minute", "end_minute"})
	for wd := 0; wd < 7; wd++ {
		active := wd >= 1 && wd <= 5
		hours.AddRow(int16(wd), active, 9*60, 17*60)
	}
	mock.ExpectQuery("SELECT weekday, active, start_minute, end_minute").
		WithArgs(providerID).
		WillReturnRows(hours)

	tpl, err := store.GetWeeklyTemplate(context.Background(), providerID)
	if err != nil {
		t.Fatalf("GetWeeklyTemplate: %v", err)
	}
	if tpl.Timezone != "America/Denver" {
		t.Fatalf("timezone = %q", tpl.Timezone)
	}
	if tpl.Days[time.Sunday].Active || !tpl.Days[time.Monday].Active {
		t.Fatalf("unexpected days: %+v", tpl.Days)
	}
	if tpl.Days[time.Monday].Start.Hour != 9 || tpl.Days[time.Monday].End.Hour != 17 {
		t.Fatalf("monday hours = %+v", tpl.Days[time.Monday])
	}
	expectMet(t, mock)
}

func TestGetWeeklyTemplateMissing(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)

	mock.ExpectQuery("SELECT timezone, updated_at").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetWeeklyTemplate(context.Background(), uuid.New())
	if !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	expectMet(t, mock)
}

func TestSaveWeeklyTemplateReplacesWholeWeek(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)
	providerID := uuid.New()

	tpl := &schedule.WeeklyTemplate{ProviderID: providerID, Timezone: "UTC"}
	tpl.Days[time.Monday] = schedule.DayHours{Active: true, Start: schedule.TimeOfDay{Hour: 9}, End: schedule.TimeOfDay{Hour: 17}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO provider_schedule").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM provider_weekly_hours").
		WithArgs(providerID).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	for wd := 0; wd < 7; wd++ {
		mock.ExpectExec("INSERT INTO provider_weekly_hours").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	if err := store.SaveWeeklyTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("SaveWeeklyTemplate: %v", err)
	}
	if tpl.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt to be set")
	}
	expectMet(t, mock)
}

func TestGetOverrideBlocksScansBothForms(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)
	providerID := uuid.New()
	created := time.Now().UTC()

	saturday := int16(6)
	onDate := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "provider_id", "weekday", "on_date", "start_minute", "end_minute", "note", "created_at"}).
		AddRow(uuid.New(), providerID, &saturday, (*time.Time)(nil), 10*60, 14*60, "saturday clinic", created).
		AddRow(uuid.New(), providerID, (*int16)(nil), &onDate, 18*60, 20*60, "evening catch-up", created)
	mock.ExpectQuery("FROM availability_overrides").
		WillReturnRows(rows)

	blocks, err := store.GetOverrideBlocks(context.Background(), providerID, created, created.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("GetOverrideBlocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if !blocks[0].Recurring() || *blocks[0].Weekday != time.Saturday {
		t.Fatalf("first block = %+v, want recurring saturday", blocks[0])
	}
	if blocks[1].Recurring() || blocks[1].Date.Day != 9 {
		t.Fatalf("second block = %+v, want one-time march 9", blocks[1])
	}
	if blocks[1].Start.Hour != 18 || blocks[1].End.Hour != 20 {
		t.Fatalf("second block window = %v-%v", blocks[1].Start, blocks[1].End)
	}
	expectMet(t, mock)
}

func TestRemoveOverrideBlockNotFound(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)

	mock.ExpectExec("DELETE FROM availability_overrides").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.RemoveOverrideBlock(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	expectMet(t, mock)
}

func TestGetBlackoutPeriodsScansBothForms(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)
	providerID := uuid.New()
	created := time.Now().UTC()

	startDate := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	startsAt := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	endsAt := startsAt.Add(2 * time.Hour)
	rows := pgxmock.NewRows([]string{"id", "provider_id", "reason", "start_date", "end_date", "starts_at", "ends_at", "created_at"}).
		AddRow(uuid.New(), providerID, "vacation", &startDate, &endDate, (*time.Time)(nil), (*time.Time)(nil), created).
		AddRow(uuid.New(), providerID, "staff meeting", (*time.Time)(nil), (*time.Time)(nil), &startsAt, &endsAt, created)
	mock.ExpectQuery("FROM blackout_periods").
		WillReturnRows(rows)

	periods, err := store.GetBlackoutPeriods(context.Background(), providerID, created, created.Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("GetBlackoutPeriods: %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("got %d periods, want 2", len(periods))
	}
	if !periods[0].WholeDay() || periods[0].StartDate.Day != 16 || periods[0].EndDate.Day != 20 {
		t.Fatalf("first period = %+v, want whole-day march 16-20", periods[0])
	}
	if periods[1].WholeDay() || !periods[1].StartsAt.Equal(startsAt) {
		t.Fatalf("second period = %+v, want instant form", periods[1])
	}
	expectMet(t, mock)
}

func TestGetAppointmentsFiltersByStatus(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)
	providerID := uuid.New()
	rangeStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.Add(24 * time.Hour)

	apptID := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "provider_id", "patient_id", "starts_at", "ends_at", "status", "notes", "cancel_reason", "cancelled_at", "created_at", "updated_at"}).
		AddRow(apptID, providerID, uuid.New(), rangeStart.Add(10*time.Hour), rangeStart.Add(10*time.Hour+30*time.Minute),
			"scheduled", "", "", (*time.Time)(nil), rangeStart, rangeStart)
	mock.ExpectQuery("FROM appointments").
		WithArgs(providerID, rangeStart, rangeEnd, []string{"scheduled", "completed"}).
		WillReturnRows(rows)

	appts, err := store.GetAppointments(context.Background(), providerID, rangeStart, rangeEnd, schedule.BlockingStatuses)
	if err != nil {
		t.Fatalf("GetAppointments: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != apptID {
		t.Fatalf("unexpected appointments: %+v", appts)
	}
	if appts[0].Status != schedule.StatusScheduled {
		t.Fatalf("status = %s", appts[0].Status)
	}
	expectMet(t, mock)
}

func TestGetAppointmentNotFound(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)

	mock.ExpectQuery("FROM appointments").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetAppointment(context.Background(), uuid.New())
	if !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	expectMet(t, mock)
}

func TestGetProviderSettingsMissing(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)

	mock.ExpectQuery("FROM provider_schedule_settings").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetProviderSettings(context.Background(), uuid.New())
	if !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	expectMet(t, mock)
}

func TestGetProviderSettings(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)
	providerID := uuid.New()

	mock.ExpectQuery("FROM provider_schedule_settings").
		WithArgs(providerID).
		WillReturnRows(pgxmock.NewRows([]string{"timezone", "slot_duration_minutes", "buffer_minutes", "min_lead_minutes", "updated_at"}).
			AddRow("America/Denver", 45, 15, 120, time.Now().UTC()))

	settings, err := store.GetProviderSettings(context.Background(), providerID)
	if err != nil {
		t.Fatalf("GetProviderSettings: %v", err)
	}
	if settings.SlotDurationMinutes != 45 || settings.BufferMinutes != 15 || settings.MinLeadMinutes != 120 {
		t.Fatalf("unexpected settings: %+v", settings)
	}
	expectMet(t, mock)
}

func TestDashboardStatsComputesShowRate(t *testing.T) {
	mock := newMock(t)
	store := newStoreWithPool(mock)
	providerID := uuid.New()

	rows := pgxmock.NewRows([]string{"provider_id", "scheduled", "completed", "cancelled", "no_shows"}).
		AddRow(providerID, int64(3), int64(8), int64(1), int64(2))
	mock.ExpectQuery("GROUP BY provider_id").
		WillReturnRows(rows)

	stats, err := store.DashboardStats(context.Background(), time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d rows, want 1", len(stats))
	}
	if stats[0].ShowRatePct != 80 {
		t.Fatalf("show rate = %v, want 80", stats[0].ShowRatePct)
	}
	expectMet(t, mock)
}
