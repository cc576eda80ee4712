package hours

import (
	"errors"
	"fmt"
)

// OverrideType classifies an exception to the weekly schedule.
type OverrideType string

const (
	TypeClosure  OverrideType = "closure"
	TypeSpecial  OverrideType = "special"
	TypeHoliday  OverrideType = "holiday"
	TypeSeasonal OverrideType = "seasonal"
)

// Valid reports whether t is a known override type.
func (t OverrideType) Valid() bool {
	return t.Precedence() > 0
}

// Precedence orders types for tie-breaks: closure > special > holiday > seasonal.
// Unknown types rank below all of them.
func (t OverrideType) Precedence() int {
	switch t {
	case TypeClosure:
		return 4
	case TypeSpecial:
		return 3
	case TypeHoliday:
		return 2
	case TypeSeasonal:
		return 1
	}
	return 0
}

// DefaultPriority is the conventional priority band of the type.
func (t OverrideType) DefaultPriority() int {
	switch t {
	case TypeClosure:
		return 100
	case TypeSpecial:
		return 30
	case TypeHoliday:
		return 20
	}
	return 10
}

// Recurrence tells whether a rule reapplies after its first date range.
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceYearly  Recurrence = "yearly"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Valid reports whether r is a known recurrence. Empty means none.
func (r Recurrence) Valid() bool {
	switch r {
	case "", RecurrenceNone, RecurrenceYearly, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// OverrideRule is a date-bound exception to a location's weekly schedule.
// Rules are plain values: the engine does not care whether the ID belongs to
// a persisted row or to an unsaved draft.
type OverrideRule struct {
	ID                string          `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	Description       string          `json:"description,omitempty" yaml:"description,omitempty"`
	Type              OverrideType    `json:"override_type" yaml:"override_type"`
	DateStart         string          `json:"date_start" yaml:"date_start"`
	DateEnd           string          `json:"date_end,omitempty" yaml:"date_end,omitempty"`
	Recurrence        Recurrence      `json:"recurrence,omitempty" yaml:"recurrence,omitempty"`
	RecurrenceEndDate string          `json:"recurrence_end_date,omitempty" yaml:"recurrence_end_date,omitempty"`
	IsClosed          bool            `json:"is_closed" yaml:"is_closed"`
	Hours             *Hours          `json:"hours,omitempty" yaml:"hours,omitempty"`
	WeeklyPattern     *WeeklySchedule `json:"weekly_pattern,omitempty" yaml:"weekly_pattern,omitempty"`
	Priority          int             `json:"priority" yaml:"priority"`
}

// EffectivePriority returns Priority, or the type's band when unset.
func (r OverrideRule) EffectivePriority() int {
	if r.Priority != 0 {
		return r.Priority
	}
	return r.Type.DefaultPriority()
}

// RecurrenceOrNone normalizes an empty recurrence to none.
func (r OverrideRule) RecurrenceOrNone() Recurrence {
	if r.Recurrence == "" {
		return RecurrenceNone
	}
	return r.Recurrence
}

// EndOrStart returns DateEnd, defaulting to DateStart for single-day rules.
func (r OverrideRule) EndOrStart() string {
	if r.DateEnd == "" {
		return r.DateStart
	}
	return r.DateEnd
}

// MonthDayKey is the "MM-DD" part of DateStart, used to key yearly holidays.
func (r OverrideRule) MonthDayKey() string {
	if len(r.DateStart) < len(DateLayout) {
		return ""
	}
	return r.DateStart[5:10]
}

// Label is the text shown to guests when this rule governs a day.
func (r OverrideRule) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.Type)
}

// Validate checks the rule completely, including hours that the engine
// would otherwise only discover when the rule wins a day.
func (r OverrideRule) Validate() error {
	_, err := compileRule(r)

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if r.Hours != nil {
		if _, herr := ParseHours(*r.Hours); herr != nil {
			errs = append(errs, fmt.Errorf("hours: %w", herr))
		}
	}
	if r.WeeklyPattern != nil {
		if r.Type != TypeSeasonal {
			errs = append(errs, fmt.Errorf("%w: weekly_pattern is only allowed on seasonal rules", ErrInvalidRule))
		} else if perr := r.WeeklyPattern.Validate(); perr != nil {
			errs = append(errs, fmt.Errorf("weekly_pattern: %w", perr))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("rule %q: %w", r.ID, errors.Join(errs...))
}
