package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubGoose(t *testing.T, fn func(dir string) error) {
	t.Helper()
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })
	gooseUp = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		return fn(dir)
	}
}

func TestManager_BindsRepositoriesToConn(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewPostgresRepositoryManager()
	assert.NotNil(t, m.Versions(db))
	assert.NotNil(t, m.Entries(db))
}

func TestMigrate_RunsEmbeddedSchema(t *testing.T) {
	var gotDir string
	stubGoose(t, func(dir string) error {
		gotDir = dir
		return nil
	})

	require.NoError(t, NewPostgresRepositoryManager().Migrate(context.Background(), &sql.DB{}))
	assert.Equal(t, ".", gotDir)
}

func TestMigrate_WrapsFailure(t *testing.T) {
	boom := errors.New("boom")
	stubGoose(t, func(string) error { return boom })

	err := NewPostgresRepositoryManager().Migrate(context.Background(), &sql.DB{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "apply server schema")
}
