package hours

import (
	"fmt"
	"time"
)

// DefaultLookaheadDays bounds the forward search for the next opening.
const DefaultLookaheadDays = 14

// OpenStatus is what status badges and the settings preview display.
type OpenStatus struct {
	IsOpen     bool   `json:"is_open"`
	Hours      *Hours `json:"hours,omitempty"`
	Note       string `json:"note,omitempty"`
	NextChange string `json:"next_change,omitempty"`
}

// DayResolver returns the effective schedule of a calendar date.
type DayResolver func(date time.Time) DaySchedule

// Status computes the open state at now. now must already be in the venue's
// time zone; its wall clock is what gets compared. Both interval ends are
// inclusive: a venue closing at 18:00 still reads open at 18:00.
func Status(now time.Time, resolve DayResolver, horizon int) OpenStatus {
	if horizon <= 0 {
		horizon = DefaultLookaheadDays
	}
	today := DateOf(now)
	m := MinuteOfDay(now)

	prev := resolve(today.AddDate(0, 0, -1))
	day := resolve(today)

	// Yesterday's overnight hours run into today unless a closure covers today.
	if !prev.Closed && prev.Interval.Overnight && m <= prev.Interval.Close && !closedByClosure(day) {
		return OpenStatus{
			IsOpen:     true,
			Hours:      prev.Hours(),
			Note:       prev.Reason(),
			NextChange: closesAt(prev.Interval.Close),
		}
	}

	st := OpenStatus{Note: day.Reason()}
	if day.Closed {
		st.NextChange = nextOpening(today, resolve, horizon)
		return st
	}

	iv := day.Interval
	switch {
	case m < iv.Open:
		st.Hours = day.Hours()
		st.NextChange = opensAt(iv.Open)
	case iv.Overnight || m <= iv.Close:
		st.IsOpen = true
		st.Hours = day.Hours()
		st.NextChange = closesAt(iv.Close)
	default:
		st.NextChange = nextOpening(today, resolve, horizon)
	}
	return st
}

func closedByClosure(d DaySchedule) bool {
	return d.Closed && d.Rule != nil && d.Rule.Type == TypeClosure
}

// nextOpening scans the days after from, up to horizon of them.
func nextOpening(from time.Time, resolve DayResolver, horizon int) string {
	for i := 1; i <= horizon; i++ {
		date := from.AddDate(0, 0, i)
		if day := resolve(date); !day.Closed {
			return fmt.Sprintf("Opens %s at %s", date.Weekday(), FormatClock(day.Interval.Open))
		}
	}
	return ""
}

func opensAt(minute int) string {
	return "Opens at " + FormatClock(minute)
}

func closesAt(minute int) string {
	return "Closes at " + FormatClock(minute)
}
