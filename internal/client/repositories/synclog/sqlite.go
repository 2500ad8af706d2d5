package synclog

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, e Entry, keep int) error {
	if keep <= 0 {
		keep = DefaultKeep
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_log (created_at, level, message, details) VALUES (?, ?, ?, ?)`,
		e.CreatedAt.UTC().Format(time.RFC3339Nano), e.Level, e.Message, e.Details)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM sync_log WHERE id NOT IN (SELECT id FROM sync_log ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("failed to trim sync log: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultKeep
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, level, message, details FROM sync_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to select sync log: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &at, &e.Level, &e.Message, &e.Details); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("sync log %d: %w", e.ID, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
