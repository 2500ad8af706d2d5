// Package entries provides the PostgreSQL repository for stored record
// versions and the incremental-pull queries over them.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/dbx"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/dmitrijs2005/tradesync/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `id, updated_at, server_updated_at, device_id, deleted, seq, data`

// Lock takes the transaction-scoped advisory lock of one user's collection.
// It must run inside a transaction; the lock is released on commit or rollback.
func (r *PostgresRepository) Lock(ctx context.Context, userID string, c records.Collection) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID+":"+string(c))
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// Get returns the held version of id, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID string, c records.Collection, id string) (*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE user_id = $1 AND collection = $2 AND id = $3`

	e := &models.Entry{UserID: userID, Collection: c}
	err := r.db.QueryRowContext(ctx, query, userID, string(c), id).Scan(
		&e.ID, &e.UpdatedAt, &e.ServerUpdatedAt, &e.DeviceID, &e.Deleted, &e.Seq, &e.Data,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// Upsert writes a record version, replacing any previous one for the same id.
func (r *PostgresRepository) Upsert(ctx context.Context, e *models.Entry) error {
	query := `
		INSERT INTO entries (user_id, collection, id, updated_at, server_updated_at, device_id, deleted, seq, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, collection, id)
		DO UPDATE SET
			updated_at = EXCLUDED.updated_at,
			server_updated_at = EXCLUDED.server_updated_at,
			device_id = EXCLUDED.device_id,
			deleted = EXCLUDED.deleted,
			seq = EXCLUDED.seq,
			data = EXCLUDED.data;
	`
	res, err := r.db.ExecContext(ctx, query,
		e.UserID, string(e.Collection), e.ID, e.UpdatedAt, e.ServerUpdatedAt, e.DeviceID, e.Deleted, e.Seq, e.Data)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// SelectSince returns entries with seq > since in seq order. A non-positive
// limit returns all of them.
func (r *PostgresRepository) SelectSince(ctx context.Context, userID string, c records.Collection, since int64, limit int) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE user_id = $1 AND collection = $2 AND seq > $3
		ORDER BY seq
		LIMIT $4`

	var lim any
	if limit > 0 {
		lim = limit
	}
	return r.selectEntries(ctx, userID, c, query, userID, string(c), since, lim)
}

// SelectLive returns the entries of a collection that are not tombstoned.
func (r *PostgresRepository) SelectLive(ctx context.Context, userID string, c records.Collection) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE user_id = $1 AND collection = $2 AND NOT deleted
		ORDER BY seq`
	return r.selectEntries(ctx, userID, c, query, userID, string(c))
}

func (r *PostgresRepository) selectEntries(ctx context.Context, userID string, c records.Collection, query string, args ...any) ([]*models.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		e := &models.Entry{UserID: userID, Collection: c}
		if err := rows.Scan(&e.ID, &e.UpdatedAt, &e.ServerUpdatedAt, &e.DeviceID, &e.Deleted, &e.Seq, &e.Data); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
