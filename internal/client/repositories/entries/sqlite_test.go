package entries

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

const (
	id1 = "550e8400-e29b-41d4-a716-446655440001"
	id2 = "550e8400-e29b-41d4-a716-446655440002"
	id3 = "550e8400-e29b-41d4-a716-446655440003"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE entries (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  is_dirty INTEGER NOT NULL DEFAULT 0,
  deleted INTEGER NOT NULL DEFAULT 0,
  data TEXT NOT NULL,
  PRIMARY KEY (collection, id)
);
`)
	require.NoError(t, err)

	return db
}

func trade(id, symbol string, at time.Time) *records.Trade {
	return &records.Trade{Meta: records.Meta{ID: id, UpdatedAt: at}, Symbol: symbol}
}

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestUpsert_InsertThenUpdate(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	in := trade(id1, "AAPL", t0)
	require.NoError(t, r.Upsert(ctx, in, true))
	assert.False(t, in.IsDirty, "caller's record must not be modified")

	got, err := r.Get(ctx, records.Trades, id1)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.(*records.Trade).Symbol)
	assert.True(t, got.Header().IsDirty)

	require.NoError(t, r.Upsert(ctx, trade(id1, "MSFT", t0.Add(time.Minute)), false))
	got, err = r.Get(ctx, records.Trades, id1)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", got.(*records.Trade).Symbol)
	assert.False(t, got.Header().IsDirty)
	assert.True(t, got.Header().UpdatedAt.Equal(t0.Add(time.Minute)))
}

func TestGet_NotFoundAndCollectionsSeparate(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, trade(id1, "AAPL", t0), false))

	_, err := r.Get(ctx, records.Strategies, id1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.Get(ctx, records.Trades, id2)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList_SkipsTombstonesNewestFirst(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, trade(id1, "OLD", t0), false))
	require.NoError(t, r.Upsert(ctx, trade(id2, "NEW", t0.Add(time.Hour)), false))
	gone := trade(id3, "GONE", t0.Add(2*time.Hour))
	gone.Deleted = true
	require.NoError(t, r.Upsert(ctx, gone, true))

	list, err := r.List(ctx, records.Trades)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, id2, list[0].Header().ID)
	assert.Equal(t, id1, list[1].Header().ID)

	live, dirty, err := r.Count(ctx, records.Trades)
	require.NoError(t, err)
	assert.Equal(t, 2, live)
	assert.Equal(t, 1, dirty)
}

func TestDirtyAndClearDirty(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, trade(id1, "A", t0), true))
	require.NoError(t, r.Upsert(ctx, trade(id2, "B", t0), true))
	require.NoError(t, r.Upsert(ctx, trade(id3, "C", t0), false))

	dirty, err := r.Dirty(ctx, records.Trades)
	require.NoError(t, err)
	require.Len(t, dirty, 2)
	assert.Equal(t, id1, dirty[0].Header().ID)

	require.NoError(t, r.ClearDirty(ctx, records.Trades, []string{id1, id2}))
	require.NoError(t, r.ClearDirty(ctx, records.Trades, nil))

	dirty, err = r.Dirty(ctx, records.Trades)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	got, err := r.Get(ctx, records.Trades, id2)
	require.NoError(t, err)
	assert.False(t, got.Header().IsDirty)
}

func TestPurgeLocalTombstones(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	stamped := t0.Add(time.Minute)

	local := trade(id1, "A", t0)
	local.Deleted = true
	synced := trade(id2, "B", t0)
	synced.Deleted = true
	synced.ServerUpdatedAt = &stamped
	require.NoError(t, r.Upsert(ctx, local, true))
	require.NoError(t, r.Upsert(ctx, synced, true))
	require.NoError(t, r.Upsert(ctx, trade(id3, "C", t0), true))

	n, err := r.PurgeLocalTombstones(ctx, records.Trades, []string{id1, id2, id3})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.Get(ctx, records.Trades, id1)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	got, err := r.Get(ctx, records.Trades, id2)
	require.NoError(t, err)
	assert.True(t, got.Header().Deleted)
	_, err = r.Get(ctx, records.Trades, id3)
	require.NoError(t, err)

	n, err = r.PurgeLocalTombstones(ctx, records.Trades, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStrategiesRoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	s := &records.Strategy{Meta: records.Meta{ID: id1, UpdatedAt: t0, DeviceID: "dev-1"}, Name: "Breakout"}
	require.NoError(t, r.Upsert(ctx, s, true))

	got, err := r.Get(ctx, records.Strategies, id1)
	require.NoError(t, err)
	gs, ok := got.(*records.Strategy)
	require.True(t, ok)
	assert.Equal(t, "Breakout", gs.Name)
	assert.Equal(t, "dev-1", gs.DeviceID)
}
