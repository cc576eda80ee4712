package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"venuehours/internal/hours"
)

const DefaultLocationsPath = "configs/locations.yaml"

// LocationConfig represents a single location configuration.
type LocationConfig struct {
	ID        int64                 `yaml:"id"`
	Name      string                `yaml:"name"`
	Address   string                `yaml:"address"`
	IsActive  bool                  `yaml:"is_active"`
	Hours     *hours.WeeklySchedule `yaml:"hours,omitempty"`
	Overrides []hours.OverrideRule  `yaml:"overrides,omitempty"`
}

// HolidayConfig represents a holiday shared by all locations.
type HolidayConfig struct {
	Date      string `yaml:"date"` // "2026-01-01"
	Name      string `yaml:"name"`
	Recurring bool   `yaml:"recurring"` // repeats every year on the same month-day
}

// DefaultsConfig represents global default settings.
type DefaultsConfig struct {
	Hours   *hours.WeeklySchedule `yaml:"hours"`
	DaysOff []int                 `yaml:"days_off"` // 1=Mon, 7=Sun
}

// LocationsConfig is the root configuration for locations.yaml.
type LocationsConfig struct {
	Locations []LocationConfig `yaml:"locations"`
	Defaults  DefaultsConfig   `yaml:"defaults"`
	Holidays  []HolidayConfig  `yaml:"holidays"`
}

// LoadLocationsConfig loads and validates locations configuration from YAML file.
func LoadLocationsConfig(path string) (*LocationsConfig, error) {
	if path == "" {
		path = DefaultLocationsPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations config: %w", err)
	}

	return ParseLocationsConfig(data)
}

// ParseLocationsConfig decodes, validates and completes a locations document.
func ParseLocationsConfig(data []byte) (*LocationsConfig, error) {
	var cfg LocationsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse locations config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate locations config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *LocationsConfig) Validate() error {
	if len(c.Locations) == 0 {
		return fmt.Errorf("no locations defined")
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := hours.ParseDate(h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: %w", i, err)
		}
	}

	// Holiday rules are stored next to each location's overrides, so their
	// derived ids share one namespace.
	holidayIDs := make(map[string]bool)
	for i, r := range c.HolidayRules() {
		if holidayIDs[r.ID] {
			return fmt.Errorf("holiday[%d]: duplicate id '%s'", i, r.ID)
		}
		holidayIDs[r.ID] = true
	}

	ids := make(map[int64]bool)
	names := make(map[string]bool)

	for i, loc := range c.Locations {
		if loc.ID <= 0 {
			return fmt.Errorf("location[%d]: id must be positive, got %d", i, loc.ID)
		}
		if ids[loc.ID] {
			return fmt.Errorf("location[%d]: duplicate id %d", i, loc.ID)
		}
		ids[loc.ID] = true

		if loc.Name == "" {
			return fmt.Errorf("location[%d]: name is required", i)
		}
		if names[loc.Name] {
			return fmt.Errorf("location[%d]: duplicate name '%s'", i, loc.Name)
		}
		names[loc.Name] = true

		if loc.Hours != nil {
			if err := loc.Hours.Validate(); err != nil {
				return fmt.Errorf("location[%d].hours: %w", i, err)
			}
		}

		ruleIDs := make(map[string]bool)
		for j, r := range loc.Overrides {
			if r.ID == "" {
				return fmt.Errorf("location[%d].overrides[%d]: id is required", i, j)
			}
			if ruleIDs[r.ID] {
				return fmt.Errorf("location[%d].overrides[%d]: duplicate id '%s'", i, j, r.ID)
			}
			ruleIDs[r.ID] = true
			if holidayIDs[r.ID] {
				return fmt.Errorf("location[%d].overrides[%d]: id '%s' clashes with a holiday", i, j, r.ID)
			}

			if err := r.Validate(); err != nil {
				return fmt.Errorf("location[%d].overrides[%d]: %w", i, j, err)
			}
		}
	}

	if c.Defaults.Hours != nil {
		if err := c.Defaults.Hours.Validate(); err != nil {
			return fmt.Errorf("defaults.hours: %w", err)
		}
	}

	for i, d := range c.Defaults.DaysOff {
		if _, err := hours.FromISOWeekday(d); err != nil {
			return fmt.Errorf("defaults.days_off[%d]: %w", i, err)
		}
	}

	return nil
}

// applyDefaults fills location hours from defaults and removes days off.
func (c *LocationsConfig) applyDefaults() {
	for i := range c.Locations {
		if c.Locations[i].Hours != nil || c.Defaults.Hours == nil {
			continue
		}

		week := *c.Defaults.Hours
		for _, d := range c.Defaults.DaysOff {
			day, err := hours.FromISOWeekday(d)
			if err != nil {
				continue
			}
			week.Set(day, nil)
		}
		c.Locations[i].Hours = &week
	}
}

// GetLocationByID returns location config by ID.
func (c *LocationsConfig) GetLocationByID(id int64) *LocationConfig {
	for i := range c.Locations {
		if c.Locations[i].ID == id {
			return &c.Locations[i]
		}
	}
	return nil
}

// GetActiveLocations returns only active locations.
func (c *LocationsConfig) GetActiveLocations() []LocationConfig {
	result := make([]LocationConfig, 0)
	for _, loc := range c.Locations {
		if loc.IsActive {
			result = append(result, loc)
		}
	}
	return result
}

// HolidayRules converts the global holidays into holiday override rules.
// Recurring holidays repeat yearly; the rule id is derived from the date so
// repeated syncs stay idempotent.
func (c *LocationsConfig) HolidayRules() []hours.OverrideRule {
	rules := make([]hours.OverrideRule, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		r := hours.OverrideRule{
			ID:         "holiday-" + h.Date,
			Name:       h.Name,
			Type:       hours.TypeHoliday,
			DateStart:  h.Date,
			Recurrence: hours.RecurrenceNone,
			IsClosed:   true,
			Priority:   hours.TypeHoliday.DefaultPriority(),
		}
		if h.Recurring {
			r.ID = "holiday-" + r.MonthDayKey()
			r.Recurrence = hours.RecurrenceYearly
		}
		rules = append(rules, r)
	}
	return rules
}

// IsHoliday checks if a date is a configured holiday.
func (c *LocationsConfig) IsHoliday(date time.Time) (bool, string) {
	for _, r := range c.HolidayRules() {
		if hours.Matches(r, date) {
			return true, r.Name
		}
	}
	return false, ""
}

// String returns a summary of the configuration.
func (c *LocationsConfig) String() string {
	active := 0
	overrides := 0
	for _, loc := range c.Locations {
		if loc.IsActive {
			active++
		}
		overrides += len(loc.Overrides)
	}
	return fmt.Sprintf("LocationsConfig: %d locations (%d active), %d overrides, %d holidays",
		len(c.Locations), active, overrides, len(c.Holidays))
}
