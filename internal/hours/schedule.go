package hours

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// WeeklySchedule is a location's recurring week. A nil day means closed.
type WeeklySchedule struct {
	Mon *Hours `json:"mon,omitempty" yaml:"mon,omitempty"`
	Tue *Hours `json:"tue,omitempty" yaml:"tue,omitempty"`
	Wed *Hours `json:"wed,omitempty" yaml:"wed,omitempty"`
	Thu *Hours `json:"thu,omitempty" yaml:"thu,omitempty"`
	Fri *Hours `json:"fri,omitempty" yaml:"fri,omitempty"`
	Sat *Hours `json:"sat,omitempty" yaml:"sat,omitempty"`
	Sun *Hours `json:"sun,omitempty" yaml:"sun,omitempty"`
}

// DefaultWeeklySchedule returns the platform's fallback week for locations
// that never configured their own hours.
func DefaultWeeklySchedule() WeeklySchedule {
	weekday := func() *Hours { return &Hours{Open: "09:00", Close: "22:00"} }
	return WeeklySchedule{
		Mon: weekday(),
		Tue: weekday(),
		Wed: weekday(),
		Thu: weekday(),
		Fri: &Hours{Open: "09:00", Close: "23:00"},
		Sat: &Hours{Open: "10:00", Close: "23:00"},
		Sun: &Hours{Open: "10:00", Close: "21:00"},
	}
}

// For returns the hours configured for day, or nil when closed.
func (w WeeklySchedule) For(day time.Weekday) *Hours {
	switch day {
	case time.Monday:
		return w.Mon
	case time.Tuesday:
		return w.Tue
	case time.Wednesday:
		return w.Wed
	case time.Thursday:
		return w.Thu
	case time.Friday:
		return w.Fri
	case time.Saturday:
		return w.Sat
	case time.Sunday:
		return w.Sun
	}
	return nil
}

// Set replaces the hours for day. A nil h closes the day.
func (w *WeeklySchedule) Set(day time.Weekday, h *Hours) {
	switch day {
	case time.Monday:
		w.Mon = h
	case time.Tuesday:
		w.Tue = h
	case time.Wednesday:
		w.Wed = h
	case time.Thursday:
		w.Thu = h
	case time.Friday:
		w.Fri = h
	case time.Saturday:
		w.Sat = h
	case time.Sunday:
		w.Sun = h
	}
}

// IsEmpty reports whether every day is closed.
func (w WeeklySchedule) IsEmpty() bool {
	for _, day := range Week {
		if w.For(day) != nil {
			return false
		}
	}
	return true
}

// Validate parses every configured day and joins the failures.
func (w WeeklySchedule) Validate() error {
	var errs []error
	for _, day := range Week {
		h := w.For(day)
		if h == nil {
			continue
		}
		if _, err := ParseHours(*h); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", WeekdayKey(day), err))
		}
	}
	return errors.Join(errs...)
}

// Week lists weekdays Monday first, the order schedules are edited in.
var Week = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var weekdayKeys = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
	time.Sunday:    "sun",
}

// WeekdayKey returns the three-letter persisted key ("mon".."sun").
func WeekdayKey(day time.Weekday) string {
	return weekdayKeys[day]
}

// ParseWeekdayKey accepts "mon".."sun" as well as full English names.
func ParseWeekdayKey(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for day, key := range weekdayKeys {
		if s == key || s == strings.ToLower(day.String()) {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// ISOWeekday converts Go's weekday (0=Sun) to 1=Mon..7=Sun.
func ISOWeekday(day time.Weekday) int {
	if day == time.Sunday {
		return 7
	}
	return int(day)
}

// FromISOWeekday is the inverse of ISOWeekday.
func FromISOWeekday(n int) (time.Weekday, error) {
	if n < 1 || n > 7 {
		return time.Sunday, fmt.Errorf("invalid day %d, must be 1-7 (1=Mon, 7=Sun)", n)
	}
	return time.Weekday(n % 7), nil
}
