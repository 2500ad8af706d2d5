package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MigratesSchema(t *testing.T) {
	ctx := context.Background()
	m, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	tr := &records.Trade{Meta: records.Meta{ID: "550e8400-e29b-41d4-a716-446655440001", UpdatedAt: time.Now()}, Symbol: "X"}
	require.NoError(t, m.Entries.Upsert(ctx, tr, true))
	require.NoError(t, m.Metadata.SetString(ctx, metadata.KeyDeviceID, "d"))

	n, err := m.Outbox.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	logs, err := m.SyncLog.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	boom := errors.New("boom")
	err = m.InTx(ctx, func(ctx context.Context, r *Repositories) error {
		require.NoError(t, r.Metadata.SetString(ctx, metadata.KeySyncToken, "tok"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	tok, err := m.Metadata.GetString(ctx, metadata.KeySyncToken)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, m.InTx(ctx, func(ctx context.Context, r *Repositories) error {
		return r.Metadata.SetString(ctx, metadata.KeySyncToken, "tok")
	}))
	tok, err = m.Metadata.GetString(ctx, metadata.KeySyncToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestOpen_MigrationFailure(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("migrate failed")
	}

	_, err := Open(context.Background(), ":memory:")
	assert.ErrorContains(t, err, "migrate failed")
}
