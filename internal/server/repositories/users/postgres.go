// Package users keeps the per-user, per-collection change counters that
// order entries for incremental pull.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tradesync/internal/dbx"
	"github.com/dmitrijs2005/tradesync/internal/records"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// IncrementCurrentVersion reserves n sequence values and returns the
// highest one. The counter row is created on first use.
func (r *PostgresRepository) IncrementCurrentVersion(ctx context.Context, userID string, c records.Collection, n int) (int64, error) {
	query :=
		`INSERT INTO user_versions (user_id, collection, current_version)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, collection)
		 DO UPDATE SET current_version = user_versions.current_version + EXCLUDED.current_version
		 RETURNING current_version
		 `

	var version int64
	err := r.db.QueryRowContext(ctx, query, userID, string(c), int64(n)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return version, nil
}

// CurrentVersion returns the highest sequence assigned so far, 0 when none.
func (r *PostgresRepository) CurrentVersion(ctx context.Context, userID string, c records.Collection) (int64, error) {
	query :=
		`SELECT current_version FROM user_versions
		 WHERE user_id = $1 AND collection = $2
		 `

	var version int64
	err := r.db.QueryRowContext(ctx, query, userID, string(c)).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return version, nil
}
