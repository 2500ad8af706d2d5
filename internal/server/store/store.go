// Package store persists the server copy of each user's collections.
//
// Every accepted change receives the next value of a per-user,
// per-collection sequence. Writers of one collection are serialized, so the
// set of committed changes is always a gap-free prefix of that sequence and
// readers can resume from the last sequence they saw.
package store

import (
	"context"

	"github.com/dmitrijs2005/tradesync/internal/records"
)

// Page is a run of one collection's history in sequence order.
type Page struct {
	Records []records.Record
	// Last is the highest sequence included, or the requested lower bound
	// when the page is empty.
	Last    int64
	HasMore bool
}

// Tx is an exclusive view of one user's collection.
type Tx interface {
	// Load returns the held versions (tombstones included) of the given ids.
	// Unknown ids are absent from the result.
	Load(ctx context.Context, ids []string) (map[string]records.Record, error)
	// Save writes recs, assigning new sequences in slice order.
	Save(ctx context.Context, recs []records.Record) error
	// Since lists changes with a sequence above since. limit <= 0 means no limit.
	Since(ctx context.Context, since int64, limit int) (Page, error)
}

// Store is implemented by the in-memory and PostgreSQL backends.
type Store interface {
	// Update runs fn holding the lock of (userID, c). Writes made through the
	// Tx become visible together when fn returns nil and are discarded otherwise.
	Update(ctx context.Context, userID string, c records.Collection, fn func(ctx context.Context, tx Tx) error) error
	// Since is the read-only form of Tx.Since.
	Since(ctx context.Context, userID string, c records.Collection, since int64, limit int) (Page, error)
	// Live returns the records of c that are not tombstoned.
	Live(ctx context.Context, userID string, c records.Collection) ([]records.Record, error)
	Ping(ctx context.Context) error
	Close() error
}
