package hours

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ChristmasClosure(t *testing.T) {
	e := New(DefaultConfig())
	base := officeWeek()
	xmas := rule("xmas", TypeClosure, "2025-12-25", "", RecurrenceNone)
	xmas.Name = "Christmas"

	st, err := e.Status(time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC), &base, []OverrideRule{xmas})
	require.NoError(t, err)
	assert.False(t, st.IsOpen)
	assert.Equal(t, "Christmas", st.Note)
	assert.Equal(t, "Opens Friday at 08:00", st.NextChange)
}

func TestEngine_SeasonalRangeThenBaseResumes(t *testing.T) {
	e := New(DefaultConfig())
	base := officeWeek()
	summer := openRule("summer", TypeSeasonal, "2025-06-01", "2025-08-31", "07:00", "22:00")

	cal := e.Calendar(&base, []OverrideRule{summer})
	require.NoError(t, cal.Err())

	last := cal.Day(date("2025-08-31"))
	assert.Equal(t, SourceOverride, last.Source)
	assert.Equal(t, Interval{Open: 420, Close: 1320}, last.Interval)

	resumed := cal.Day(date("2025-09-01"))
	assert.Equal(t, SourceOperatingHours, resumed.Source)
	assert.Equal(t, Interval{Open: 480, Close: 1080}, resumed.Interval)
}

func TestEngine_DefaultScheduleWhenBaseMissing(t *testing.T) {
	e := New(DefaultConfig())

	day := e.ResolveDay(date("2025-06-06"), nil, nil)
	assert.Equal(t, SourceDefault, day.Source)
	assert.Equal(t, "09:00-23:00", day.Hours().String())

	// An explicit empty week is a location closed every day.
	empty := WeeklySchedule{}
	day = e.ResolveDay(date("2025-06-06"), &empty, nil)
	assert.True(t, day.Closed)
	assert.Equal(t, SourceOperatingHours, day.Source)
}

func TestEngine_ConfigDefaults(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, time.UTC, e.Config().Location)
	assert.Equal(t, DefaultLookaheadDays, e.Config().LookaheadDays)

	// A zero DefaultSchedule is honoured: no hours anywhere.
	day := e.ResolveDay(date("2025-06-02"), nil, nil)
	assert.True(t, day.Closed)
}

func TestEngine_StatusUsesVenueTimeZone(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	e := New(Config{Location: loc})
	base := officeWeek()

	// 01:30 UTC Monday is 08:30 Monday at the venue.
	st, err := e.Status(time.Date(2025, 6, 2, 1, 30, 0, 0, time.UTC), &base, nil)
	require.NoError(t, err)
	assert.True(t, st.IsOpen)
	assert.Equal(t, "Closes at 18:00", st.NextChange)

	// 23:30 UTC Sunday is already 06:30 Monday at the venue.
	st, err = e.Status(time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC), &base, nil)
	require.NoError(t, err)
	assert.False(t, st.IsOpen)
	assert.Equal(t, "Opens at 08:00", st.NextChange)
}

func TestEngine_StatusReportsBadData(t *testing.T) {
	e := New(DefaultConfig())
	base := officeWeek()
	base.Tue = &Hours{Open: "08:00", Close: "7pm"}

	rules := []OverrideRule{
		rule("broken", TypeClosure, "2025-13-01", "", RecurrenceNone),
	}

	// Monday evening looks ahead into the malformed Tuesday.
	st, err := e.Status(time.Date(2025, 6, 2, 19, 0, 0, 0, time.UTC), &base, rules)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.ErrorIs(t, err, ErrInvalidTime)
	assert.Contains(t, err.Error(), "2025-06-03")

	assert.False(t, st.IsOpen)
	assert.Equal(t, "Opens Wednesday at 08:00", st.NextChange)
}

func TestEngine_StatusRepeatsDayErrorsOnce(t *testing.T) {
	e := New(Config{LookaheadDays: 14})
	base := WeeklySchedule{Mon: &Hours{Open: "x", Close: "y"}}

	_, err := e.Status(time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), &base, nil)
	require.Error(t, err)
	// Today and the following two Mondays inside the horizon.
	assert.Equal(t, 3, countLines(err.Error()))
}

func countLines(s string) int {
	n := 1
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}

func TestCalendar_Range(t *testing.T) {
	e := New(DefaultConfig())
	base := officeWeek()
	xmas := rule("xmas", TypeHoliday, "2024-12-25", "", RecurrenceYearly)

	cal := e.Calendar(&base, []OverrideRule{xmas})
	days := cal.Range(date("2025-12-24"), date("2025-12-28"))
	require.Len(t, days, 5)

	assert.Equal(t, date("2025-12-24"), days[0].Date)
	assert.False(t, days[0].Closed)
	assert.True(t, days[1].Closed)
	assert.Equal(t, "xmas", days[1].Rule.ID)
	assert.False(t, days[2].Closed, "Friday")
	assert.True(t, days[3].Closed, "Saturday")
	assert.True(t, days[4].Closed, "Sunday")

	assert.Nil(t, cal.Range(date("2025-12-28"), date("2025-12-24")))
	assert.Len(t, cal.Range(date("2025-12-28"), date("2025-12-28")), 1)
}

func TestCalendar_ProvisionalRulesPreview(t *testing.T) {
	e := New(DefaultConfig())
	base := officeWeek()
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

	saved, err := e.Status(now, &base, nil)
	require.NoError(t, err)
	assert.True(t, saved.IsOpen)

	// An unsaved rule is previewed without touching the stored set.
	draft := rule("", TypeClosure, "2025-07-15", "", RecurrenceNone)
	draft.Name = "Staff training"
	preview, err := e.Status(now, &base, []OverrideRule{draft})
	require.NoError(t, err)
	assert.False(t, preview.IsOpen)
	assert.Equal(t, "Staff training", preview.Note)
}

func TestEngine_ConcurrentCallers(t *testing.T) {
	e := New(DefaultConfig())
	base := officeWeek()
	rules := []OverrideRule{
		rule("xmas", TypeClosure, "2025-12-25", "", RecurrenceYearly),
		openRule("summer", TypeSeasonal, "2025-06-01", "2025-08-31", "07:00", "22:00"),
	}
	cal := e.Calendar(&base, rules)
	want, err := cal.Status(time.Date(2025, 7, 15, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]OpenStatus, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cal.Status(time.Date(2025, 7, 15, 21, 0, 0, 0, time.UTC))
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
	assert.True(t, want.IsOpen)
}
