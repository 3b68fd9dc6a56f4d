package eventstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the occurrence table in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres connects to databaseURL, creates the schema and returns the
// store. The caller closes the store.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Init creates the schema if needed.
func (s *PostgresStore) Init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS precomputed_events (
			name TEXT NOT NULL,
			hours DOUBLE PRECISION NOT NULL,
			year BIGINT NOT NULL,
			day BIGINT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (name, hours)
		)`,
		`CREATE INDEX IF NOT EXISTS precomputed_events_hours_idx ON precomputed_events (hours)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, hours, year, day, latitude, longitude
		FROM precomputed_events
		ORDER BY hours, name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Name, &r.Hours, &r.Year, &r.Day, &r.Latitude, &r.Longitude); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Append(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO precomputed_events (name, hours, year, day, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name, hours) DO NOTHING
	`, r.Name, r.Hours, r.Year, r.Day, r.Latitude, r.Longitude)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Save replaces the table in one transaction.
func (s *PostgresStore) Save(ctx context.Context, records []Record) error {
	records = Normalize(records)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM precomputed_events`); err != nil {
		return fmt.Errorf("clearing events: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"precomputed_events"},
		[]string{"name", "hours", "year", "day", "latitude", "longitude"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{r.Name, r.Hours, r.Year, r.Day, r.Latitude, r.Longitude}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copying events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing events: %w", err)
	}
	return nil
}
