// ABOUTME: SQLite backend for route profiles using modernc.org/sqlite
// ABOUTME: Creates its schema on open so a fresh database starts with zero routes

package route

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS route_profiles (
		name_id        TEXT NOT NULL,
		category       TEXT NOT NULL,
		api            TEXT NOT NULL,
		base_address   TEXT NOT NULL,
		authentication TEXT NOT NULL DEFAULT '',
		user_agent     TEXT NOT NULL DEFAULT '',
		timeout_ms     INTEGER NOT NULL,
		PRIMARY KEY (name_id, category)
	);
`

const selectProfiles = `
	SELECT name_id, category, api, base_address, authentication, user_agent, timeout_ms
	FROM route_profiles
`

// SQLiteSource loads profiles from a SQLite database.
type SQLiteSource struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSource opens (or creates) the database at path and ensures the
// route_profiles table exists.
func NewSQLiteSource(path string) (*SQLiteSource, error) {
	logger := slog.Default().With("component", "routesource")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening route database: %w", err)
	}

	// WAL keeps concurrent refresh reads from blocking external writers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating route schema: %w", err)
	}

	logger.Info("sqlite route source initialized", "path", path)
	return &SQLiteSource{db: db, logger: logger}, nil
}

// Load runs the fixed profile query and scans the full batch.
func (s *SQLiteSource) Load(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, selectProfiles)
	if err != nil {
		return nil, fmt.Errorf("%w: querying profiles: %v", ErrLoad, err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.NameId, &p.Category, &p.Api, &p.BaseAddress, &p.Authentication, &p.UserAgent, &p.Timeout); err != nil {
			return nil, fmt.Errorf("%w: scanning profile row: %v", ErrLoad, err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading profile rows: %v", ErrLoad, err)
	}
	return profiles, nil
}

// Close releases the underlying database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
