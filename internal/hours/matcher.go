package hours

import (
	"errors"
	"fmt"
	"time"
)

// compiledRule holds a rule with its dates parsed once.
type compiledRule struct {
	rule       OverrideRule
	recurrence Recurrence
	start      time.Time
	end        time.Time
	until      time.Time // zero when the recurrence never ends
	startOrd   int
	endOrd     int
}

func compileRule(r OverrideRule) (compiledRule, error) {
	if !r.Type.Valid() {
		return compiledRule{}, fmt.Errorf("%w: unknown override_type %q", ErrInvalidRule, r.Type)
	}
	if !r.Recurrence.Valid() {
		return compiledRule{}, fmt.Errorf("%w: unknown recurrence %q", ErrInvalidRule, r.Recurrence)
	}

	start, err := ParseDate(r.DateStart)
	if err != nil {
		return compiledRule{}, fmt.Errorf("date_start: %w", err)
	}
	end, err := ParseDate(r.EndOrStart())
	if err != nil {
		return compiledRule{}, fmt.Errorf("date_end: %w", err)
	}

	c := compiledRule{
		rule:       r,
		recurrence: r.RecurrenceOrNone(),
		start:      start,
		end:        end,
		startOrd:   ordinal(start.Month(), start.Day()),
		endOrd:     ordinal(end.Month(), end.Day()),
	}

	// Yearly ranges may wrap the new year, so only literal ranges are ordered.
	if c.recurrence != RecurrenceYearly && end.Before(start) {
		return compiledRule{}, fmt.Errorf("%w: date_end %s is before date_start %s", ErrInvalidRule, r.DateEnd, r.DateStart)
	}
	// A yearly range only keeps its month-days, so it must span less than a year.
	if c.recurrence == RecurrenceYearly && !end.Before(start.AddDate(1, 0, 0)) {
		return compiledRule{}, fmt.Errorf("%w: yearly range %s..%s spans a year or more", ErrInvalidRule, r.DateStart, r.DateEnd)
	}

	if r.RecurrenceEndDate != "" {
		if c.until, err = ParseDate(r.RecurrenceEndDate); err != nil {
			return compiledRule{}, fmt.Errorf("recurrence_end_date: %w", err)
		}
	}
	return c, nil
}

func (c *compiledRule) matches(date time.Time) bool {
	if !c.until.IsZero() && date.After(c.until) {
		return false
	}

	switch c.recurrence {
	case RecurrenceYearly:
		return yearlyMatch(c.startOrd, c.endOrd, date)
	case RecurrenceWeekly:
		return !date.Before(c.start) && date.Weekday() == c.start.Weekday()
	case RecurrenceMonthly:
		return !date.Before(c.start) && date.Day() == c.start.Day()
	default:
		return !date.Before(c.start) && !date.After(c.end)
	}
}

// ordinal is the day-of-year of (month, day) in a leap year, so Feb 29 is 60
// and every month-day has a slot regardless of the year being matched.
func ordinal(m time.Month, d int) int {
	return time.Date(2000, m, d, 0, 0, 0, 0, time.UTC).YearDay()
}

const feb29 = 60

func yearlyMatch(startOrd, endOrd int, date time.Time) bool {
	if inYearlyRange(startOrd, endOrd, ordinal(date.Month(), date.Day())) {
		return true
	}
	// Common years have no Feb 29: Feb 28 stands in for it.
	if date.Month() == time.February && date.Day() == 28 && !isLeap(date.Year()) {
		return inYearlyRange(startOrd, endOrd, feb29)
	}
	return false
}

func inYearlyRange(startOrd, endOrd, ord int) bool {
	if startOrd <= endOrd {
		return startOrd <= ord && ord <= endOrd
	}
	return ord >= startOrd || ord <= endOrd
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Matches reports whether rule applies to the calendar date of date.
// Rules that cannot be parsed never match.
func Matches(rule OverrideRule, date time.Time) bool {
	c, err := compileRule(rule)
	if err != nil {
		return false
	}
	return c.matches(DateOf(date))
}

// Ruleset is an immutable, pre-parsed set of override rules. It is safe for
// concurrent use.
type Ruleset struct {
	rules []compiledRule
	err   error
}

// NewRuleset compiles rules. Rules whose type, recurrence or dates are
// unusable are left out; the returned error lists them, and the Ruleset is
// still usable.
func NewRuleset(rules []OverrideRule) (*Ruleset, error) {
	rs := &Ruleset{rules: make([]compiledRule, 0, len(rules))}

	var errs []error
	for _, r := range rules {
		c, err := compileRule(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", r.ID, err))
			continue
		}
		rs.rules = append(rs.rules, c)
	}
	rs.err = errors.Join(errs...)
	return rs, rs.err
}

// Len returns the number of usable rules.
func (rs *Ruleset) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Err returns the compile errors of the rules that were left out.
func (rs *Ruleset) Err() error {
	if rs == nil {
		return nil
	}
	return rs.err
}

// Matching returns the rules that apply to date, in input order.
func (rs *Ruleset) Matching(date time.Time) []OverrideRule {
	if rs == nil {
		return nil
	}
	date = DateOf(date)

	var out []OverrideRule
	for i := range rs.rules {
		if rs.rules[i].matches(date) {
			out = append(out, rs.rules[i].rule)
		}
	}
	return out
}

// Winner returns the single rule governing date, if any.
func (rs *Ruleset) Winner(date time.Time) (OverrideRule, bool) {
	return Resolve(rs.Matching(date))
}
