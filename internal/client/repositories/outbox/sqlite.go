package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/dbx"
	"github.com/dmitrijs2005/tradesync/internal/records"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `seq, entry_id, idempotency_key, action, record_type, record_id, payload, enqueued_at`

func (r *SQLiteRepository) Append(ctx context.Context, e *Entry) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (entry_id, idempotency_key, action, record_type, record_id, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.IdempotencyKey, string(e.Action), string(e.RecordType), e.RecordID,
		string(e.Payload), e.EnqueuedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to append outbox entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get outbox seq: %w", err)
	}
	e.Seq = seq
	return seq, nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.query(ctx, `SELECT `+columns+` FROM outbox ORDER BY seq LIMIT ?`, limit)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select outbox entries: %w", err)
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		var (
			e                   Entry
			action, rtype       string
			payload, enqueuedAt string
		)
		if err := rows.Scan(&e.Seq, &e.EntryID, &e.IdempotencyKey, &action, &rtype, &e.RecordID, &payload, &enqueuedAt); err != nil {
			return nil, err
		}
		e.Action = records.Action(action)
		e.RecordType = records.RecordType(rtype)
		e.Payload = json.RawMessage(payload)
		if e.EnqueuedAt, err = time.Parse(time.RFC3339Nano, enqueuedAt); err != nil {
			return nil, fmt.Errorf("outbox entry %d: %w", e.Seq, err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteUpTo(ctx context.Context, seq int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE seq <= ?`, seq); err != nil {
		return fmt.Errorf("failed to delete outbox entries: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) PendingAfter(ctx context.Context, t records.RecordType, recordID string, seq int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE record_type = ? AND record_id = ? AND seq > ?`,
		string(t), recordID, seq).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check outbox: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count outbox: %w", err)
	}
	return n, nil
}
