package entries

import (
	"context"

	"github.com/dmitrijs2005/tradesync/internal/records"
)

// Repository stores local copies of records.
type Repository interface {
	// Upsert writes rec and sets its dirty flag.
	Upsert(ctx context.Context, rec records.Record, dirty bool) error

	// Get returns one record, tombstones included, or common.ErrorNotFound.
	Get(ctx context.Context, c records.Collection, id string) (records.Record, error)

	// List returns the live records of c, most recently updated first.
	List(ctx context.Context, c records.Collection) ([]records.Record, error)

	// Dirty returns the records of c with unsynchronized local changes,
	// tombstones included.
	Dirty(ctx context.Context, c records.Collection) ([]records.Record, error)

	// ClearDirty resets the dirty flag of the given records.
	ClearDirty(ctx context.Context, c records.Collection, ids []string) error

	// PurgeLocalTombstones removes tombstones among ids that never reached
	// the server and reports how many rows went away.
	PurgeLocalTombstones(ctx context.Context, c records.Collection, ids []string) (int, error)

	// Count returns the number of live and dirty records of c.
	Count(ctx context.Context, c records.Collection) (live, dirty int, err error)
}
