package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore backs the counter with the registration_counters table.
// The upsert increments and returns in one statement, so concurrent callers
// serialize inside Postgres on the row, never in application code.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Next(ctx context.Context, scopeKey, dateBucket string) (int64, error) {
	query := `
		INSERT INTO registration_counters (scope_key, date_bucket, seq, updated_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (scope_key, date_bucket) DO UPDATE SET
			seq = registration_counters.seq + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING seq
	`
	var seq int64
	if err := s.db.QueryRowContext(ctx, query, scopeKey, dateBucket, time.Now()).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next sequence for (%s, %s): %w", scopeKey, dateBucket, err)
	}
	return seq, nil
}
