package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuehours/internal/config"
	"venuehours/internal/hours"
)

const syncYAML = `
locations:
  - id: 1
    name: Downtown
    is_active: true
    hours:
      mon: {open: "08:00", close: "18:00"}
    overrides:
      - id: refit
        name: Refit
        override_type: closure
        date_start: "2025-03-01"
        date_end: "2025-03-03"
        is_closed: true
  - id: 2
    name: Airport
    is_active: true
holidays:
  - {date: "2025-12-25", name: Christmas, recurring: true}
`

func TestSyncLocationsFromConfig(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg, err := config.ParseLocationsConfig([]byte(syncYAML))
	require.NoError(t, err)
	require.NoError(t, db.SyncLocationsFromConfig(ctx, cfg))

	active, err := db.ListActiveLocations(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	week, err := db.GetWeeklySchedule(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, week)
	assert.Equal(t, "18:00", week.Mon.Close)
	assert.Nil(t, week.Tue)

	airportWeek, err := db.GetWeeklySchedule(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, airportWeek, "no hours and no defaults: default week applies")

	overrides, err := db.ListOverrides(ctx, 1, OverrideFilter{})
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "refit", overrides[0].ID)
	assert.Equal(t, "holiday-12-25", overrides[1].ID)
	assert.Equal(t, hours.RecurrenceYearly, overrides[1].Recurrence)
	for _, o := range overrides {
		assert.Equal(t, OriginConfig, o.Origin)
	}

	airportRules, err := db.ListOverrides(ctx, 2, OverrideFilter{})
	require.NoError(t, err)
	require.Len(t, airportRules, 1, "holidays apply to every location")
}

func TestSyncLocationsFromConfig_Resync(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg, err := config.ParseLocationsConfig([]byte(syncYAML))
	require.NoError(t, err)
	require.NoError(t, db.SyncLocationsFromConfig(ctx, cfg))

	// An override created through the API survives re-syncs.
	manual := &Override{
		OverrideRule: hours.OverrideRule{Name: "Staff party", Type: hours.TypeClosure, DateStart: "2025-07-04", IsClosed: true},
		LocationID:   1,
		IsActive:     true,
	}
	require.NoError(t, db.CreateOverride(ctx, manual))

	loc, err := db.GetLocation(ctx, 1)
	require.NoError(t, err)
	created := loc.CreatedAt

	// Second sync: the airport is gone and the refit was removed.
	next, err := config.ParseLocationsConfig([]byte(`
locations:
  - id: 1
    name: Downtown Renamed
    is_active: true
    hours:
      tue: {open: "09:00", close: "17:00"}
`))
	require.NoError(t, err)
	require.NoError(t, db.SyncLocationsFromConfig(ctx, next))
	require.NoError(t, db.SyncLocationsFromConfig(ctx, next), "sync is idempotent")

	loc, err = db.GetLocation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Downtown Renamed", loc.Name)
	assert.True(t, created.Equal(loc.CreatedAt), "created_at preserved")

	airport, err := db.GetLocation(ctx, 2)
	require.NoError(t, err)
	assert.False(t, airport.IsActive)

	week, err := db.GetWeeklySchedule(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, week.Mon)
	assert.Equal(t, "09:00", week.Tue.Open)

	overrides, err := db.ListOverrides(ctx, 1, OverrideFilter{})
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, manual.ID, overrides[0].ID)
}

func TestSyncLocationsFromConfig_ConfigTakesOverAPIOverrideID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cfg, err := config.ParseLocationsConfig([]byte(syncYAML))
	require.NoError(t, err)
	require.NoError(t, db.SyncLocationsFromConfig(ctx, cfg))

	manual := &Override{
		OverrideRule: hours.OverrideRule{ID: "xmas", Name: "Early close", Type: hours.TypeSpecial, DateStart: "2025-12-24",
			Hours: &hours.Hours{Open: "08:00", Close: "12:00"}},
		LocationID: 1,
		IsActive:   true,
	}
	require.NoError(t, db.CreateOverride(ctx, manual))

	next, err := config.ParseLocationsConfig([]byte(`
locations:
  - id: 1
    name: Downtown
    is_active: true
    overrides:
      - {id: xmas, name: Christmas Eve, override_type: closure, date_start: "2025-12-24", is_closed: true}
`))
	require.NoError(t, err)
	require.NoError(t, db.SyncLocationsFromConfig(ctx, next))
	require.NoError(t, db.SyncLocationsFromConfig(ctx, next), "later polls keep applying")

	o, err := db.GetOverride(ctx, 1, "xmas")
	require.NoError(t, err)
	assert.Equal(t, OriginConfig, o.Origin)
	assert.Equal(t, "Christmas Eve", o.Name)
	assert.True(t, o.IsClosed)
}

func TestSyncLocationsFromConfig_Nil(t *testing.T) {
	db := newTestDB(t)
	assert.Error(t, db.SyncLocationsFromConfig(context.Background(), nil))
}
