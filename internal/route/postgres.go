// ABOUTME: PostgreSQL backend for route profiles using a pgx connection pool
// ABOUTME: Same row shape as the SQLite backend, managed schema is external

package route

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSource loads profiles from a PostgreSQL database.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource connects a pool to databaseURL and verifies connectivity.
func NewPostgresSource(ctx context.Context, databaseURL string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

// Load runs the fixed profile query and scans the full batch.
func (s *PostgresSource) Load(ctx context.Context) ([]Profile, error) {
	rows, err := s.pool.Query(ctx, selectProfiles)
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

// Close releases the connection pool.
func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}
