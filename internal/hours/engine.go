package hours

import (
	"errors"
	"time"
)

// Config holds the engine-wide settings. It replaces any package-level
// default: callers build it once and hand it to New.
type Config struct {
	// DefaultSchedule applies to locations with no weekly schedule at all.
	DefaultSchedule WeeklySchedule
	// Location is the venue time zone used to read "now". Defaults to UTC.
	Location *time.Location
	// LookaheadDays bounds the next-opening search. Defaults to 14.
	LookaheadDays int
}

// DefaultConfig returns a Config with the platform defaults.
func DefaultConfig() Config {
	return Config{
		DefaultSchedule: DefaultWeeklySchedule(),
		Location:        time.UTC,
		LookaheadDays:   DefaultLookaheadDays,
	}
}

// Engine answers opening-hours queries. It keeps no state between calls and
// can be shared by any number of goroutines.
type Engine struct {
	cfg Config
}

// New creates an engine, filling unset Config fields with defaults.
func New(cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = DefaultLookaheadDays
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's effective settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// Calendar binds the engine to one location's data. base may be nil, in
// which case the configured default week applies.
func (e *Engine) Calendar(base *WeeklySchedule, rules []OverrideRule) *Calendar {
	c := &Calendar{
		engine: e,
		base:   e.cfg.DefaultSchedule,
		source: SourceDefault,
	}
	if base != nil {
		c.base = *base
		c.source = SourceOperatingHours
	}
	c.rules, c.err = NewRuleset(rules)
	return c
}

// ResolveDay is a shortcut for Calendar(base, rules).Day(date).
func (e *Engine) ResolveDay(date time.Time, base *WeeklySchedule, rules []OverrideRule) DaySchedule {
	return e.Calendar(base, rules).Day(date)
}

// Status is a shortcut for Calendar(base, rules).Status(now).
func (e *Engine) Status(now time.Time, base *WeeklySchedule, rules []OverrideRule) (OpenStatus, error) {
	return e.Calendar(base, rules).Status(now)
}

// Calendar is a location's schedule ready for queries. It is read-only after
// construction.
type Calendar struct {
	engine *Engine
	base   WeeklySchedule
	source Source
	rules  *Ruleset
	err    error
}

// Err returns the problems found while compiling the rules.
func (c *Calendar) Err() error {
	return c.err
}

// Day returns the effective schedule for the calendar date of date.
func (c *Calendar) Day(date time.Time) DaySchedule {
	var winner *OverrideRule
	if r, ok := c.rules.Winner(date); ok {
		winner = &r
	}

	ds := ResolveDay(date, c.base, winner)
	if ds.Source == SourceOperatingHours {
		ds.Source = c.source
	}
	return ds
}

// Range returns one DaySchedule per date from start to end inclusive.
func (c *Calendar) Range(start, end time.Time) []DaySchedule {
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return nil
	}

	days := make([]DaySchedule, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, c.Day(d))
	}
	return days
}

// Status computes the open state at now, read in the engine's time zone.
// The returned status is always usable; a non-nil error reports bad data
// that was treated as closed while computing it.
func (c *Calendar) Status(now time.Time) (OpenStatus, error) {
	errs := []error{c.err}
	seen := make(map[time.Time]bool)

	resolve := func(date time.Time) DaySchedule {
		ds := c.Day(date)
		if ds.Err != nil && !seen[ds.Date] {
			seen[ds.Date] = true
			errs = append(errs, ds.Err)
		}
		return ds
	}

	st := Status(now.In(c.engine.cfg.Location), resolve, c.engine.cfg.LookaheadDays)
	return st, errors.Join(errs...)
}
