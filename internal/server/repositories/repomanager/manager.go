// Package repomanager vends the PostgreSQL repositories that back the server
// store and applies the embedded server schema.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/tradesync/internal/dbx"
	"github.com/dmitrijs2005/tradesync/internal/server/migrations"
	"github.com/dmitrijs2005/tradesync/internal/server/repositories/entries"
	"github.com/dmitrijs2005/tradesync/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RepositoryManager binds repositories to a connection or transaction.
type RepositoryManager interface {
	Migrate(ctx context.Context, db *sql.DB) error
	// Versions allocates per-user, per-collection sync sequences.
	Versions(db dbx.DBTX) users.Repository
	// Entries stores the records themselves.
	Entries(db dbx.DBTX) entries.Repository
}

type postgresManager struct{}

// NewPostgresRepositoryManager returns the PostgreSQL RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return postgresManager{}
}

func (postgresManager) Versions(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (postgresManager) Entries(db dbx.DBTX) entries.Repository {
	return entries.NewPostgresRepository(db)
}

var gooseUp = goose.UpContext

// Migrate applies every pending migration from the embedded server schema.
func (postgresManager) Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("apply server schema: %w", err)
	}
	return nil
}
