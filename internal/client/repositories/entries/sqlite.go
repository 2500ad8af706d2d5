package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/dbx"
	"github.com/dmitrijs2005/tradesync/internal/records"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert inserts or replaces the row of rec. The stored JSON carries the
// dirty flag so that a decoded record reflects the row. rec is not modified.
func (r *SQLiteRepository) Upsert(ctx context.Context, rec records.Record, dirty bool) error {
	rec = rec.Clone()
	h := rec.Header()
	h.IsDirty = dirty

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", rec.Collection(), h.ID, err)
	}

	query := `INSERT INTO entries (collection, id, updated_at, is_dirty, deleted, data)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO UPDATE SET updated_at = excluded.updated_at,
				is_dirty = excluded.is_dirty,
				deleted = excluded.deleted,
				data = excluded.data
	`
	_, err = r.db.ExecContext(ctx, query,
		string(rec.Collection()), h.ID, formatTime(h.UpdatedAt), dirty, h.Deleted, string(data))
	if err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

// Get returns the record c/id, tombstones included.
func (r *SQLiteRepository) Get(ctx context.Context, c records.Collection, id string) (records.Record, error) {
	var data string
	var dirty bool
	err := r.db.QueryRowContext(ctx, `SELECT data, is_dirty FROM entries WHERE collection = ? AND id = ?`,
		string(c), id).Scan(&data, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return decode(c, data, dirty)
}

// List returns live records, most recently updated first.
func (r *SQLiteRepository) List(ctx context.Context, c records.Collection) ([]records.Record, error) {
	return r.query(ctx, c, `SELECT data, is_dirty FROM entries
		WHERE collection = ? AND deleted = 0 ORDER BY updated_at DESC, id`)
}

// Dirty returns records with pending local changes in id order.
func (r *SQLiteRepository) Dirty(ctx context.Context, c records.Collection) ([]records.Record, error) {
	return r.query(ctx, c, `SELECT data, is_dirty FROM entries
		WHERE collection = ? AND is_dirty = 1 ORDER BY id`)
}

func (r *SQLiteRepository) query(ctx context.Context, c records.Collection, query string) ([]records.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, string(c))
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []records.Record
	for rows.Next() {
		var data string
		var dirty bool
		if err := rows.Scan(&data, &dirty); err != nil {
			return nil, err
		}
		rec, err := decode(c, data, dirty)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ClearDirty resets the dirty flag of ids, both in the column and in the
// stored JSON.
func (r *SQLiteRepository) ClearDirty(ctx context.Context, c records.Collection, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, string(c))
	for _, id := range ids {
		args = append(args, id)
	}

	query := `UPDATE entries SET is_dirty = 0, data = json_remove(data, '$.isDirty')
		WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear dirty flags: %w", err)
	}
	return nil
}

// PurgeLocalTombstones deletes the rows of ids that are tombstones the
// server never stamped. Other rows are left alone.
func (r *SQLiteRepository) PurgeLocalTombstones(ctx context.Context, c records.Collection, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, string(c))
	for _, id := range ids {
		args = append(args, id)
	}

	query := `DELETE FROM entries
		WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)
			AND deleted = 1 AND json_extract(data, '$.serverUpdatedAt') IS NULL`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tombstones: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge tombstones: %w", err)
	}
	return int(n), nil
}

// Count returns the number of live and dirty records of c.
func (r *SQLiteRepository) Count(ctx context.Context, c records.Collection) (live, dirty int, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT
			COALESCE(SUM(CASE WHEN deleted = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(is_dirty), 0)
		FROM entries WHERE collection = ?`, string(c)).Scan(&live, &dirty)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return live, dirty, nil
}

func decode(c records.Collection, data string, dirty bool) (records.Record, error) {
	rec, err := records.Decode(c, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("stored %s is corrupt: %w", c, err)
	}
	rec.Header().IsDirty = dirty
	return rec, nil
}

// formatTime renders t so that lexical order matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}
