// Package outbox persists the ordered queue of local mutations waiting to be
// sent to the server.
package outbox

import (
	"context"

	"github.com/dmitrijs2005/tradesync/internal/records"
)

// Entry is one queued mutation. Seq is assigned on append and orders the
// queue.
type Entry struct {
	Seq      int64
	RecordID string
	records.Mutation
}

type Repository interface {
	// Append queues e and returns its sequence number.
	Append(ctx context.Context, e *Entry) (int64, error)

	// List returns up to limit entries in enqueue order. A non-positive
	// limit returns all of them.
	List(ctx context.Context, limit int) ([]*Entry, error)

	// DeleteUpTo removes every entry with Seq <= seq.
	DeleteUpTo(ctx context.Context, seq int64) error

	// PendingAfter reports whether the record has entries with Seq > seq.
	PendingAfter(ctx context.Context, t records.RecordType, recordID string, seq int64) (bool, error)

	// Count returns the queue length.
	Count(ctx context.Context) (int, error)
}
