package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PostgresStore)(nil)

const ddlProgress = `
CREATE TABLE IF NOT EXISTS dictation_progress (
    user_id       TEXT         NOT NULL,
    exercise_slug TEXT         NOT NULL,
    current_index INTEGER      NOT NULL DEFAULT 0,
    total_segments INTEGER     NOT NULL DEFAULT 0,
    correct_count INTEGER      NOT NULL DEFAULT 0,
    updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, exercise_slug)
);

CREATE INDEX IF NOT EXISTS idx_dictation_progress_user
    ON dictation_progress (user_id, updated_at DESC);
`

// PostgresStore is a [Store] backed by a dictation_progress table.
//
// All methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database at dsn and ensures the progress
// table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("progress store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("progress store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddlProgress); err != nil {
		pool.Close()
		return nil, fmt.Errorf("progress store: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Save implements [Store] with an upsert on (user_id, exercise_slug).
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO dictation_progress
		    (user_id, exercise_slug, current_index, total_segments, correct_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id, exercise_slug) DO UPDATE SET
		    current_index  = EXCLUDED.current_index,
		    total_segments = EXCLUDED.total_segments,
		    correct_count  = EXCLUDED.correct_count,
		    updated_at     = now()`

	_, err := s.pool.Exec(ctx, q,
		rec.UserID,
		rec.ExerciseSlug,
		rec.CurrentIndex,
		rec.TotalSegments,
		rec.CorrectCount,
	)
	if err != nil {
		return fmt.Errorf("progress store: save: %w", err)
	}
	return nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, userID, exerciseSlug string) (Record, error) {
	const q = `
		SELECT user_id, exercise_slug, current_index, total_segments, correct_count, updated_at
		FROM   dictation_progress
		WHERE  user_id = $1 AND exercise_slug = $2`

	rows, err := s.pool.Query(ctx, q, userID, exerciseSlug)
	if err != nil {
		return Record{}, fmt.Errorf("progress store: get: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("progress store: scan: %w", err)
	}
	return rec, nil
}

// ListByUser implements [Store].
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	const q = `
		SELECT user_id, exercise_slug, current_index, total_segments, correct_count, updated_at
		FROM   dictation_progress
		WHERE  user_id = $1
		ORDER  BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("progress store: list: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("progress store: scan rows: %w", err)
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func scanRecord(row pgx.CollectableRow) (Record, error) {
	var r Record
	err := row.Scan(
		&r.UserID,
		&r.ExerciseSlug,
		&r.CurrentIndex,
		&r.TotalSegments,
		&r.CorrectCount,
		&r.UpdatedAt,
	)
	return r, err
}
