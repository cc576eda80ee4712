package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the hours service.
type DB struct {
	*sql.DB
}

// NewDB opens database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS locations (
            id INTEGER PRIMARY KEY,
            name TEXT UNIQUE NOT NULL,
            address TEXT,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		// One row per ISO weekday (1=Mon, 7=Sun). No rows at all means the
		// location never configured hours and the default week applies.
		`CREATE TABLE IF NOT EXISTS location_hours (
            location_id INTEGER NOT NULL,
            day_of_week INTEGER NOT NULL,
            is_closed BOOLEAN NOT NULL DEFAULT 0,
            open_time TEXT,
            close_time TEXT,
            overnight BOOLEAN NOT NULL DEFAULT 0,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (location_id, day_of_week),
            FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE
        )`,

		`CREATE TABLE IF NOT EXISTS schedule_overrides (
            id TEXT NOT NULL,
            location_id INTEGER NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            description TEXT,
            override_type TEXT NOT NULL,
            date_start TEXT NOT NULL,
            date_end TEXT,
            recurrence TEXT NOT NULL DEFAULT 'none',
            recurrence_end_date TEXT,
            is_closed BOOLEAN NOT NULL DEFAULT 0,
            open_time TEXT,
            close_time TEXT,
            overnight BOOLEAN NOT NULL DEFAULT 0,
            weekly_pattern TEXT,
            priority INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            origin TEXT NOT NULL DEFAULT 'api',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (location_id, id),
            FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE
        )`,

		`CREATE INDEX IF NOT EXISTS idx_locations_active ON locations(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_location_start ON schedule_overrides(location_id, date_start)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_origin ON schedule_overrides(location_id, origin)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
