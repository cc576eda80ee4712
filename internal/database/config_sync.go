package database

import (
	"context"
	"fmt"
	"time"

	"venuehours/internal/config"
	"venuehours/internal/hours"
)

// SyncLocationsFromConfig applies locations.yaml to the database.
// It upserts locations, replaces their weekly hours, rewrites config-owned
// overrides (global holidays included) and marks missing locations inactive.
// Overrides created through the API are left alone unless a config rule
// reuses their id.
func (db *DB) SyncLocationsFromConfig(ctx context.Context, cfg *config.LocationsConfig) error {
	if cfg == nil {
		return fmt.Errorf("locations config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	seen := make(map[int64]struct{})
	holidays := cfg.HolidayRules()

	for _, loc := range cfg.Locations {
		// Preserve created_at if the location already exists.
		_, err := tx.ExecContext(ctx, `
            INSERT INTO locations (id, name, address, is_active, created_at, updated_at)
            VALUES (?, ?, ?, ?, COALESCE((SELECT created_at FROM locations WHERE id = ?), ?), ?)
            ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                address = excluded.address,
                is_active = excluded.is_active,
                updated_at = excluded.updated_at`,
			loc.ID, loc.Name, nullString(loc.Address), loc.IsActive, loc.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync location %d: %w", loc.ID, err)
		}
		seen[loc.ID] = struct{}{}

		if err := replaceWeek(ctx, tx, loc.ID, loc.Hours); err != nil {
			return fmt.Errorf("sync location %d hours: %w", loc.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM schedule_overrides WHERE location_id = ? AND origin = ?`, loc.ID, OriginConfig,
		); err != nil {
			return fmt.Errorf("sync location %d overrides: %w", loc.ID, err)
		}

		rules := make([]hours.OverrideRule, 0, len(holidays)+len(loc.Overrides))
		rules = append(rules, holidays...)
		rules = append(rules, loc.Overrides...)
		for _, r := range rules {
			// A config rule takes over an API override that uses its id.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM schedule_overrides WHERE location_id = ? AND id = ?`, loc.ID, r.ID,
			); err != nil {
				return fmt.Errorf("sync location %d override %s: %w", loc.ID, r.ID, err)
			}
			o := &Override{OverrideRule: r, LocationID: loc.ID, IsActive: true, Origin: OriginConfig}
			if err := insertOverride(ctx, tx, o); err != nil {
				return fmt.Errorf("sync location %d: %w", loc.ID, err)
			}
		}
	}

	// Deactivate locations that disappeared from config.
	rows, err := tx.QueryContext(ctx, `SELECT id FROM locations`)
	if err != nil {
		return err
	}
	var missing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range missing {
		if _, err := tx.ExecContext(ctx, `UPDATE locations SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate location %d: %w", id, err)
		}
	}

	return tx.Commit()
}
