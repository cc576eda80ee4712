package hours

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTime     = errors.New("invalid time of day")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidRule     = errors.New("invalid override rule")
)

const (
	// DateLayout is the persisted calendar date format.
	DateLayout = "2006-01-02"
	// ClockLayout is the persisted time-of-day format.
	ClockLayout = "15:04"

	minutesPerDay = 24 * 60
)

// ParseClock parses a 24h "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || !isDigits(parts[0], 1, 2) || !isDigits(parts[1], 2, 2) {
		return 0, fmt.Errorf("%w: %q, expected HH:MM", ErrInvalidTime, s)
	}

	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	if hour > 23 || minute > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidTime, s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minute int) string {
	minute = ((minute % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func isDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseDate parses "YYYY-MM-DD" into a civil date (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q, expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return d, nil
}

// DateOf returns the calendar date of t in t's own location, as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MinuteOfDay returns the wall-clock minute of t in t's own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Interval is a parsed open/close pair in minutes since midnight.
// Close > Open, unless Overnight is set; then Close < Open and the
// interval ends on the following calendar day.
type Interval struct {
	Open      int
	Close     int
	Overnight bool
}

// Hours converts the interval back to its wire representation.
func (iv Interval) Hours() *Hours {
	return &Hours{
		Open:      FormatClock(iv.Open),
		Close:     FormatClock(iv.Close),
		Overnight: iv.Overnight,
	}
}

// Hours is the persisted form of an opening interval.
type Hours struct {
	Open      string `json:"open" yaml:"open"`
	Close     string `json:"close" yaml:"close"`
	Overnight bool   `json:"overnight,omitempty" yaml:"overnight,omitempty"`
}

// String returns "HH:MM-HH:MM".
func (h Hours) String() string {
	return h.Open + "-" + h.Close
}

// ParseHours validates h and converts it to an Interval.
func ParseHours(h Hours) (Interval, error) {
	open, err := ParseClock(h.Open)
	if err != nil {
		return Interval{}, fmt.Errorf("open: %w", err)
	}
	closeAt, err := ParseClock(h.Close)
	if err != nil {
		return Interval{}, fmt.Errorf("close: %w", err)
	}

	if h.Overnight {
		if closeAt >= open {
			return Interval{}, fmt.Errorf("%w: overnight %s must close before it opens", ErrInvalidInterval, h)
		}
	} else if closeAt <= open {
		return Interval{}, fmt.Errorf("%w: %s closes before it opens (set overnight for hours past midnight)", ErrInvalidInterval, h)
	}

	return Interval{Open: open, Close: closeAt, Overnight: h.Overnight}, nil
}
