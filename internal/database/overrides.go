package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"venuehours/internal/hours"
)

// ErrOverrideExists is returned when a location already has an override with
// the same ID.
var ErrOverrideExists = errors.New("override already exists")

// Override origins.
const (
	OriginAPI    = "api"
	OriginConfig = "config"
)

// Override is a stored override rule with its bookkeeping columns.
type Override struct {
	hours.OverrideRule
	LocationID int64     `json:"location_id"`
	IsActive   bool      `json:"is_active"`
	Origin     string    `json:"origin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OverrideFilter narrows ListOverrides. Start and End are "YYYY-MM-DD";
// non-recurring rules must overlap the window, recurring rules only need to
// not have ended before Start.
type OverrideFilter struct {
	Type            hours.OverrideType
	Start           string
	End             string
	IncludeInactive bool
}

const overrideColumns = `id, location_id, name, description, override_type, date_start, date_end,
	recurrence, recurrence_end_date, is_closed, open_time, close_time, overnight,
	weekly_pattern, priority, is_active, origin, created_at, updated_at`

// ListOverrides returns the overrides of a location ordered by date_start.
func (db *DB) ListOverrides(ctx context.Context, locationID int64, f OverrideFilter) ([]Override, error) {
	where := []string{"location_id = ?"}
	args := []any{locationID}

	if f.Type != "" {
		where = append(where, "override_type = ?")
		args = append(args, string(f.Type))
	}
	if !f.IncludeInactive {
		where = append(where, "is_active = 1")
	}
	if f.Start != "" {
		where = append(where, `(CASE WHEN recurrence = 'none'
			THEN COALESCE(date_end, date_start) >= ?
			ELSE recurrence_end_date IS NULL OR recurrence_end_date >= ? END)`)
		args = append(args, f.Start, f.Start)
	}
	if f.End != "" {
		where = append(where, "(recurrence = 'yearly' OR date_start <= ?)")
		args = append(args, f.End)
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+overrideColumns+" FROM schedule_overrides WHERE "+strings.Join(where, " AND ")+
			" ORDER BY date_start, id",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *o)
	}
	return overrides, rows.Err()
}

// GetOverride returns one override, sql.ErrNoRows when it does not exist.
func (db *DB) GetOverride(ctx context.Context, locationID int64, id string) (*Override, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+overrideColumns+" FROM schedule_overrides WHERE location_id = ? AND id = ?",
		locationID, id,
	)
	return scanOverride(row)
}

// CreateOverride validates and stores a new override. An empty ID is
// replaced by a fresh UUID.
func (db *DB) CreateOverride(ctx context.Context, o *Override) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Origin == "" {
		o.Origin = OriginAPI
	}
	if err := o.Validate(); err != nil {
		return err
	}

	err := insertOverride(ctx, db.DB, o)
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return fmt.Errorf("%w: %s", ErrOverrideExists, o.ID)
	}
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertOverride(ctx context.Context, db execer, o *Override) error {
	cols, err := overrideValues(o)
	if err != nil {
		return err
	}

	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	_, err = db.ExecContext(ctx, `
		INSERT INTO schedule_overrides (`+overrideColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(cols, o.IsActive, o.Origin, now, now)...,
	)
	if err != nil {
		return fmt.Errorf("insert override %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOverride rewrites an existing override in place.
func (db *DB) UpdateOverride(ctx context.Context, o *Override) error {
	if o == nil {
		return fmt.Errorf("override is nil")
	}
	if err := o.Validate(); err != nil {
		return err
	}
	cols, err := overrideValues(o)
	if err != nil {
		return err
	}

	o.UpdatedAt = time.Now()
	// cols[0:2] are id and location_id; they identify the row.
	args := append(cols[2:], o.IsActive, o.UpdatedAt, o.LocationID, o.ID)
	res, err := db.ExecContext(ctx, `
		UPDATE schedule_overrides SET
			name = ?, description = ?, override_type = ?, date_start = ?, date_end = ?,
			recurrence = ?, recurrence_end_date = ?, is_closed = ?, open_time = ?, close_time = ?,
			overnight = ?, weekly_pattern = ?, priority = ?, is_active = ?, updated_at = ?
		WHERE location_id = ? AND id = ?`,
		args...,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteOverride removes an override, sql.ErrNoRows when it does not exist.
func (db *DB) DeleteOverride(ctx context.Context, locationID int64, id string) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM schedule_overrides WHERE location_id = ? AND id = ?",
		locationID, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Rules strips bookkeeping columns off overrides.
func Rules(overrides []Override) []hours.OverrideRule {
	rules := make([]hours.OverrideRule, len(overrides))
	for i := range overrides {
		rules[i] = overrides[i].OverrideRule
	}
	return rules
}

// overrideValues returns the first 15 columns of overrideColumns.
func overrideValues(o *Override) ([]any, error) {
	var open, closeTime sql.NullString
	var overnight bool
	if o.Hours != nil {
		open, closeTime, overnight = nullString(o.Hours.Open), nullString(o.Hours.Close), o.Hours.Overnight
	}

	var pattern sql.NullString
	if o.WeeklyPattern != nil {
		raw, err := json.Marshal(o.WeeklyPattern)
		if err != nil {
			return nil, fmt.Errorf("encode weekly_pattern: %w", err)
		}
		pattern = sql.NullString{String: string(raw), Valid: true}
	}

	return []any{
		o.ID, o.LocationID, o.Name, nullString(o.Description), string(o.Type),
		o.DateStart, nullString(o.DateEnd), string(o.RecurrenceOrNone()), nullString(o.RecurrenceEndDate),
		o.IsClosed, open, closeTime, overnight, pattern, o.Priority,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOverride(row rowScanner) (*Override, error) {
	var (
		o                                              Override
		typ, recurrence                                string
		description, dateEnd, recurrenceEnd, open, cls sql.NullString
		pattern                                        sql.NullString
		overnight                                      bool
	)
	err := row.Scan(
		&o.ID, &o.LocationID, &o.Name, &description, &typ, &o.DateStart, &dateEnd,
		&recurrence, &recurrenceEnd, &o.IsClosed, &open, &cls, &overnight,
		&pattern, &o.Priority, &o.IsActive, &o.Origin, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Type = hours.OverrideType(typ)
	o.Recurrence = hours.Recurrence(recurrence)
	o.Description = description.String
	o.DateEnd = dateEnd.String
	o.RecurrenceEndDate = recurrenceEnd.String
	if open.Valid || cls.Valid {
		o.Hours = &hours.Hours{Open: open.String, Close: cls.String, Overnight: overnight}
	}
	if pattern.Valid {
		var week hours.WeeklySchedule
		if err := json.Unmarshal([]byte(pattern.String), &week); err != nil {
			return nil, fmt.Errorf("override %s: decode weekly_pattern: %w", o.ID, err)
		}
		o.WeeklyPattern = &week
	}
	return &o, nil
}
