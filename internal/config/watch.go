package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// LocationsDiff summarizes what a locations.yaml edit changed.
type LocationsDiff struct {
	Added           []int64
	Removed         []int64
	Changed         []int64 // name, address, active flag, hours or overrides
	HolidaysChanged bool
}

// Empty reports whether the edit changed nothing the store keeps.
func (d LocationsDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0 && !d.HolidaysChanged
}

// Affected lists the locations whose schedules may differ after the edit.
// Holidays apply everywhere, so a holiday change returns nil, meaning all.
func (d LocationsDiff) Affected() []int64 {
	if d.HolidaysChanged {
		return nil
	}
	ids := make([]int64, 0, len(d.Added)+len(d.Removed)+len(d.Changed))
	ids = append(ids, d.Added...)
	ids = append(ids, d.Removed...)
	ids = append(ids, d.Changed...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d LocationsDiff) String() string {
	return fmt.Sprintf("added=%v removed=%v changed=%v holidays_changed=%t", d.Added, d.Removed, d.Changed, d.HolidaysChanged)
}

// DiffLocations compares two loaded configs. prev may be nil for the first load.
// Defaults are compared through the hours they filled in.
func DiffLocations(prev, next *LocationsConfig) LocationsDiff {
	var d LocationsDiff
	if next == nil {
		return d
	}

	old := make(map[int64]LocationConfig)
	var oldHolidays []HolidayConfig
	if prev != nil {
		for _, loc := range prev.Locations {
			old[loc.ID] = loc
		}
		oldHolidays = prev.Holidays
	}

	seen := make(map[int64]bool, len(next.Locations))
	for _, loc := range next.Locations {
		seen[loc.ID] = true
		was, ok := old[loc.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, loc.ID)
		case !reflect.DeepEqual(was, loc):
			d.Changed = append(d.Changed, loc.ID)
		}
	}
	if prev != nil {
		for _, loc := range prev.Locations {
			if !seen[loc.ID] {
				d.Removed = append(d.Removed, loc.ID)
			}
		}
	}

	if len(oldHolidays) != 0 || len(next.Holidays) != 0 {
		d.HolidaysChanged = !reflect.DeepEqual(oldHolidays, next.Holidays)
	}
	return d
}

// WatchLocations reloads locations.yaml when its mtime moves and hands the
// new config and its diff against the previous one to onUpdate. The initial
// load happens synchronously so a broken file fails startup; later broken
// edits are logged and the previous config stays in effect. Edits that change
// nothing are not delivered.
func WatchLocations(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*LocationsConfig, LocationsDiff)) error {
	if path == "" {
		path = DefaultLocationsPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	current, err := LoadLocationsConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(current, DiffLocations(nil, current))
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()

				next, err := LoadLocationsConfig(path)
				if err != nil {
					logger.Error().Err(err).Str("path", path).Msg("locations reload rejected, keeping previous config")
					continue
				}

				diff := DiffLocations(current, next)
				if diff.Empty() {
					logger.Debug().Str("path", path).Msg("locations file touched without changes")
					continue
				}
				current = next

				logger.Info().
					Str("path", path).
					Ints64("added", diff.Added).
					Ints64("removed", diff.Removed).
					Ints64("changed", diff.Changed).
					Bool("holidays_changed", diff.HolidaysChanged).
					Str("summary", next.String()).
					Msg("locations reloaded")
				if onUpdate != nil {
					onUpdate(next, diff)
				}
			}
		}
	}()

	return nil
}
