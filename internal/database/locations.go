package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"venuehours/internal/hours"
)

// Location is a venue row.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetLocation returns a location by ID, sql.ErrNoRows when it does not exist.
func (db *DB) GetLocation(ctx context.Context, id int64) (*Location, error) {
	var l Location
	var address sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, name, address, is_active, created_at, updated_at
		FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &address, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Address = address.String
	return &l, nil
}

// ListActiveLocations returns active locations ordered by ID.
func (db *DB) ListActiveLocations(ctx context.Context) ([]Location, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, address, is_active, created_at, updated_at
		FROM locations WHERE is_active = 1
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		var address sql.NullString
		if err := rows.Scan(&l.ID, &l.Name, &address, &l.IsActive, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Address = address.String
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// UpsertLocation creates or updates a location, keeping created_at.
func (db *DB) UpsertLocation(ctx context.Context, l *Location) error {
	if l == nil {
		return fmt.Errorf("location is nil")
	}

	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO locations (id, name, address, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		l.ID, l.Name, nullString(l.Address), l.IsActive, now, now,
	)
	return err
}

// GetWeeklySchedule returns the stored week of a location. It returns nil
// without error when the location has no hours configured, leaving the
// choice of a fallback week to the caller.
func (db *DB) GetWeeklySchedule(ctx context.Context, locationID int64) (*hours.WeeklySchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, is_closed, open_time, close_time, overnight
		FROM location_hours
		WHERE location_id = ?
		ORDER BY day_of_week`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var week *hours.WeeklySchedule
	for rows.Next() {
		var (
			dayOfWeek       int
			isClosed        bool
			open, closeTime sql.NullString
			overnight       bool
		)
		if err := rows.Scan(&dayOfWeek, &isClosed, &open, &closeTime, &overnight); err != nil {
			return nil, err
		}
		if week == nil {
			week = &hours.WeeklySchedule{}
		}

		day, err := hours.FromISOWeekday(dayOfWeek)
		if err != nil {
			return nil, fmt.Errorf("location %d: %w", locationID, err)
		}
		if isClosed {
			continue
		}
		// Malformed strings are passed through; the engine closes that day
		// and reports it.
		week.Set(day, &hours.Hours{Open: open.String, Close: closeTime.String, Overnight: overnight})
	}
	return week, rows.Err()
}

// SetWeeklySchedule replaces the stored week of a location. A nil week
// removes all rows so the default week applies again.
func (db *DB) SetWeeklySchedule(ctx context.Context, locationID int64, week *hours.WeeklySchedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceWeek(ctx, tx, locationID, week); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceWeek(ctx context.Context, tx *sql.Tx, locationID int64, week *hours.WeeklySchedule) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM location_hours WHERE location_id = ?`, locationID); err != nil {
		return fmt.Errorf("clear hours: %w", err)
	}
	if week == nil {
		return nil
	}

	now := time.Now()
	for _, day := range hours.Week {
		h := week.For(day)
		var open, closeTime sql.NullString
		var overnight bool
		if h != nil {
			open, closeTime, overnight = nullString(h.Open), nullString(h.Close), h.Overnight
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO location_hours (location_id, day_of_week, is_closed, open_time, close_time, overnight, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			locationID, hours.ISOWeekday(day), h == nil, open, closeTime, overnight, now,
		)
		if err != nil {
			return fmt.Errorf("insert %s hours: %w", hours.WeekdayKey(day), err)
		}
	}
	return nil
}
