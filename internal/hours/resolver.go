package hours

import (
	"fmt"
	"time"
)

// Resolve picks the single governing rule among rules matching one date.
// Highest effective priority wins, then type precedence, then the larger ID.
// The result does not depend on the order of rules.
func Resolve(rules []OverrideRule) (OverrideRule, bool) {
	if len(rules) == 0 {
		return OverrideRule{}, false
	}

	best := rules[0]
	for _, r := range rules[1:] {
		if outranks(r, best) {
			best = r
		}
	}
	return best, true
}

func outranks(a, b OverrideRule) bool {
	if pa, pb := a.EffectivePriority(), b.EffectivePriority(); pa != pb {
		return pa > pb
	}
	if pa, pb := a.Type.Precedence(), b.Type.Precedence(); pa != pb {
		return pa > pb
	}
	if a.ID != b.ID {
		return a.ID > b.ID
	}
	// Same ID twice: prefer the closed variant, then the name, so a
	// duplicated row still resolves the same way in any order.
	if a.IsClosed != b.IsClosed {
		return a.IsClosed
	}
	return a.Name > b.Name
}

// Source tells where a day's schedule came from.
type Source string

const (
	SourceOperatingHours Source = "operating_hours"
	SourceDefault        Source = "default"
	SourceOverride       Source = "override"
)

// DaySchedule is the effective schedule of one calendar date.
type DaySchedule struct {
	Date     time.Time
	Closed   bool
	Interval Interval // valid when !Closed
	Source   Source
	Rule     *OverrideRule // set when Source is SourceOverride
	Err      error         // data-quality problem that forced the day closed
}

// Reason names the override that shaped the day, if any.
func (d DaySchedule) Reason() string {
	if d.Rule == nil {
		return ""
	}
	return d.Rule.Label()
}

// Hours returns the day's hours in wire form, nil when closed.
func (d DaySchedule) Hours() *Hours {
	if d.Closed {
		return nil
	}
	return d.Interval.Hours()
}

// ResolveDay combines the base week and the winning rule (nil when none
// matched) into the schedule of date.
func ResolveDay(date time.Time, base WeeklySchedule, winner *OverrideRule) DaySchedule {
	date = DateOf(date)
	day := date.Weekday()

	if winner == nil {
		return fromHours(date, base.For(day), SourceOperatingHours, nil)
	}

	rule := *winner
	switch {
	case rule.IsClosed:
		return DaySchedule{Date: date, Closed: true, Source: SourceOverride, Rule: &rule}
	case rule.Type == TypeSeasonal && rule.WeeklyPattern != nil:
		// Seasonal rules swap the whole week, not one day's hours.
		return fromHours(date, rule.WeeklyPattern.For(day), SourceOverride, &rule)
	case rule.Hours != nil:
		return fromHours(date, rule.Hours, SourceOverride, &rule)
	default:
		return fromHours(date, base.For(day), SourceOperatingHours, nil)
	}
}

func fromHours(date time.Time, h *Hours, src Source, rule *OverrideRule) DaySchedule {
	ds := DaySchedule{Date: date, Source: src, Rule: rule}
	if h == nil {
		ds.Closed = true
		return ds
	}

	iv, err := ParseHours(*h)
	if err != nil {
		ds.Closed = true
		ds.Err = fmt.Errorf("%s %s: %w", date.Format(DateLayout), describe(src, rule), err)
		return ds
	}
	ds.Interval = iv
	return ds
}

func describe(src Source, rule *OverrideRule) string {
	if rule != nil {
		return fmt.Sprintf("override %q", rule.ID)
	}
	return string(src)
}
