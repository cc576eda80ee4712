package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"venuehours/internal/cache"
	"venuehours/internal/database"
	"venuehours/internal/events"
	"venuehours/internal/hours"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetLocation(ctx context.Context, id int64) (*database.Location, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Location), args.Error(1)
}

func (m *mockStore) GetWeeklySchedule(ctx context.Context, id int64) (*hours.WeeklySchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hours.WeeklySchedule), args.Error(1)
}

func (m *mockStore) ListOverrides(ctx context.Context, id int64, f database.OverrideFilter) ([]database.Override, error) {
	args := m.Called(ctx, id, f)
	return args.Get(0).([]database.Override), args.Error(1)
}

func (m *mockStore) CreateOverride(ctx context.Context, o *database.Override) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockStore) DeleteOverride(ctx context.Context, id int64, ruleID string) error {
	return m.Called(ctx, id, ruleID).Error(0)
}

func officeWeek() *hours.WeeklySchedule {
	h := func() *hours.Hours { return &hours.Hours{Open: "08:00", Close: "18:00"} }
	return &hours.WeeklySchedule{Mon: h(), Tue: h(), Wed: h(), Thu: h(), Fri: h()}
}

func christmas() database.Override {
	return database.Override{
		OverrideRule: hours.OverrideRule{
			ID:         "xmas",
			Name:       "Christmas",
			Type:       hours.TypeClosure,
			DateStart:  "2025-12-25",
			Recurrence: hours.RecurrenceNone,
			IsClosed:   true,
		},
		LocationID: 1,
		IsActive:   true,
		Origin:     database.OriginAPI,
	}
}

func newTestService(t *testing.T) (*HoursService, *mockStore, *miniredis.Miniredis, *events.EventBus) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.New(io.Discard)
	store := new(mockStore)
	bus := events.NewEventBus()
	svc := NewHoursService(store, cache.NewStatusCache(client, time.Minute), hours.New(hours.DefaultConfig()), bus, &logger)
	return svc, store, mr, bus
}

func expectLocation(store *mockStore, id int64) {
	store.On("GetLocation", mock.Anything, id).Return(&database.Location{ID: id, Name: "Main", IsActive: true}, nil)
}

func TestStatus_ComputesThenCaches(t *testing.T) {
	svc, store, mr, _ := newTestService(t)
	ctx := context.Background()

	expectLocation(store, 1)
	store.On("GetWeeklySchedule", mock.Anything, int64(1)).Return(officeWeek(), nil).Once()
	store.On("ListOverrides", mock.Anything, int64(1), database.OverrideFilter{}).
		Return([]database.Override{christmas()}, nil).Once()

	now := time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC)
	res, err := svc.Status(ctx, 1, now)
	require.NoError(t, err)
	assert.False(t, res.IsOpen)
	assert.Equal(t, "Christmas", res.Note)
	assert.Equal(t, "Opens Friday at 08:00", res.NextChange)
	assert.True(t, mr.Exists("hours:status:1:202512251000"))

	// Second call in the same minute is served from the cache.
	again, err := svc.Status(ctx, 1, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, res.OpenStatus, again.OpenStatus)

	store.AssertExpectations(t)
}

func TestStatus_UnknownAndInactiveLocations(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	store.On("GetLocation", mock.Anything, int64(7)).Return(nil, sql.ErrNoRows)
	store.On("GetLocation", mock.Anything, int64(8)).Return(&database.Location{ID: 8, IsActive: false}, nil)
	store.On("GetLocation", mock.Anything, int64(9)).Return(nil, errors.New("disk I/O error"))

	_, err := svc.Status(ctx, 7, time.Now())
	assert.ErrorIs(t, err, ErrLocationNotFound)

	_, err = svc.Status(ctx, 8, time.Now())
	assert.ErrorIs(t, err, ErrLocationInactive)

	_, err = svc.Status(ctx, 9, time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocationNotFound)
}

func TestStatus_BadDataIsClosedNotFailed(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	week := officeWeek()
	week.Mon = &hours.Hours{Open: "8am", Close: "18:00"}

	expectLocation(store, 1)
	store.On("GetWeeklySchedule", mock.Anything, int64(1)).Return(week, nil)
	store.On("ListOverrides", mock.Anything, int64(1), mock.Anything).Return([]database.Override{}, nil)

	res, err := svc.Status(context.Background(), 1, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, res.IsOpen)
	assert.Equal(t, "Opens Tuesday at 08:00", res.NextChange)
}

func TestSchedule(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	expectLocation(store, 1)
	store.On("GetWeeklySchedule", mock.Anything, int64(1)).Return(officeWeek(), nil)
	store.On("ListOverrides", mock.Anything, int64(1), mock.Anything).
		Return([]database.Override{christmas()}, nil)

	days, err := svc.Schedule(ctx, 1, time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 27, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, days, 4)

	assert.Equal(t, "2025-12-24", days[0].Date)
	assert.True(t, days[0].IsOpen)
	assert.Equal(t, "08:00", days[0].Hours.Open)
	assert.Equal(t, hours.SourceOperatingHours, days[0].Source)

	assert.False(t, days[1].IsOpen)
	assert.Nil(t, days[1].Hours)
	assert.Equal(t, hours.SourceOverride, days[1].Source)
	assert.Equal(t, "xmas", days[1].OverrideID)
	assert.Equal(t, "Christmas", days[1].Reason)

	assert.False(t, days[3].IsOpen, "Saturday")
}

func TestSchedule_RangeValidation(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Schedule(ctx, 1, start, start.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.Schedule(ctx, 1, start, start.AddDate(0, 0, MaxScheduleDays+1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	assert.NoError(t, ValidateRange(start, start.AddDate(0, 0, MaxScheduleDays)))
	store.AssertNotCalled(t, "GetLocation", mock.Anything, mock.Anything)
}

func TestCreateOverride_InvalidatesCache(t *testing.T) {
	svc, store, mr, bus := newTestService(t)
	var published []int64
	bus.Subscribe(events.OverridesChanged, func(e events.Event) error {
		ids, err := e.Locations()
		published = append(published, ids...)
		return err
	})
	ctx := context.Background()

	expectLocation(store, 1)
	store.On("GetWeeklySchedule", mock.Anything, int64(1)).Return(officeWeek(), nil)
	store.On("ListOverrides", mock.Anything, int64(1), mock.Anything).Return([]database.Override{}, nil)
	store.On("CreateOverride", mock.Anything, mock.AnythingOfType("*database.Override")).
		Run(func(args mock.Arguments) { args.Get(1).(*database.Override).ID = "generated" }).
		Return(nil)

	now := time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC)
	_, err := svc.Status(ctx, 1, now)
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 1)

	o, err := svc.CreateOverride(ctx, 1, christmas().OverrideRule)
	require.NoError(t, err)
	assert.Equal(t, "generated", o.ID)
	assert.Equal(t, database.OriginAPI, o.Origin)
	assert.True(t, o.IsActive)
	assert.Empty(t, mr.Keys())
	assert.Equal(t, []int64{1}, published)
}

func TestDeleteOverride(t *testing.T) {
	svc, store, _, bus := newTestService(t)
	ctx := context.Background()

	store.On("DeleteOverride", mock.Anything, int64(1), "xmas").Return(nil)
	store.On("DeleteOverride", mock.Anything, int64(1), "missing").Return(sql.ErrNoRows)

	var published []int64
	bus.Subscribe(events.OverridesChanged, func(e events.Event) error {
		ids, err := e.Locations()
		published = append(published, ids...)
		return err
	})

	assert.NoError(t, svc.DeleteOverride(ctx, 1, "xmas"))
	assert.ErrorIs(t, svc.DeleteOverride(ctx, 1, "missing"), ErrOverrideNotFound)
	assert.Equal(t, []int64{1}, published, "only successful deletes are announced")
}

func TestEvents_InvalidateCache(t *testing.T) {
	svc, _, mr, bus := newTestService(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, svc.cache.Set(ctx, 1, at, hours.OpenStatus{IsOpen: true}))
	require.NoError(t, svc.cache.Set(ctx, 2, at, hours.OpenStatus{IsOpen: true}))

	require.NoError(t, bus.Publish(events.NewLocationsEvent(events.OverridesChanged, 1)))
	assert.Equal(t, []string{"hours:status:2:202506020900"}, mr.Keys())

	require.NoError(t, bus.Publish(events.NewLocationsEvent(events.LocationsReloaded)))
	assert.Empty(t, mr.Keys())
}

func TestPreview(t *testing.T) {
	svc, store, _, _ := newTestService(t)

	rules := []hours.OverrideRule{
		christmas().OverrideRule,
		{ID: "bad", Type: "festival", DateStart: "2025-12-26"},
	}
	res := svc.Preview(time.Date(2025, 12, 24, 17, 0, 0, 0, time.UTC), officeWeek(), rules)

	assert.True(t, res.Status.IsOpen)
	assert.Equal(t, "Closes at 18:00", res.Status.NextChange)
	require.Len(t, res.Days, PreviewDays)
	assert.Equal(t, "2025-12-24", res.Days[0].Date)
	assert.Equal(t, "xmas", res.Days[1].OverrideID)
	require.Len(t, res.Problems, 1)
	assert.Contains(t, res.Problems[0], "bad")

	store.AssertNotCalled(t, "GetLocation", mock.Anything, mock.Anything)
}

func TestServiceWithoutCache(t *testing.T) {
	logger := zerolog.New(io.Discard)
	store := new(mockStore)
	svc := NewHoursService(store, nil, hours.New(hours.DefaultConfig()), nil, &logger)

	expectLocation(store, 1)
	store.On("GetWeeklySchedule", mock.Anything, int64(1)).Return(nil, nil)
	store.On("ListOverrides", mock.Anything, int64(1), mock.Anything).Return([]database.Override{}, nil).Twice()

	now := time.Date(2025, 6, 6, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		res, err := svc.Status(context.Background(), 1, now)
		require.NoError(t, err)
		assert.True(t, res.IsOpen, "default week")
	}
	store.AssertExpectations(t)
}

func TestExport(t *testing.T) {
	svc, store, _, _ := newTestService(t)
	ctx := context.Background()

	expectLocation(store, 1)
	store.On("GetWeeklySchedule", mock.Anything, int64(1)).Return(officeWeek(), nil)
	store.On("ListOverrides", mock.Anything, int64(1), database.OverrideFilter{}).
		Return([]database.Override{christmas()}, nil)
	store.On("ListOverrides", mock.Anything, int64(1), database.OverrideFilter{Start: "2025-12-01", End: "2025-12-31"}).
		Return([]database.Override{christmas()}, nil).Once()

	data, err := svc.Export(ctx, 1, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Main", data.Location.Name)
	require.Len(t, data.Overrides, 1)
	require.Len(t, data.Days, 31)
	assert.True(t, data.Days[24].Closed)
	assert.Equal(t, hours.SourceOverride, data.Days[24].Source)

	store.AssertExpectations(t)
}
