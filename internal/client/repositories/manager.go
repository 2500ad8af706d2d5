// Package repositories opens the client database and hands out repositories
// bound either to the database or to a transaction.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/tradesync/internal/client/migrations"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/synclog"
	"github.com/dmitrijs2005/tradesync/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories groups the repositories sharing one DBTX.
type Repositories struct {
	Entries  entries.Repository
	Outbox   outbox.Repository
	Metadata metadata.Repository
	SyncLog  synclog.Repository
}

// Bind returns repositories using db, which may be a *sql.DB or a *sql.Tx.
func Bind(db dbx.DBTX) *Repositories {
	return &Repositories{
		Entries:  entries.NewSQLiteRepository(db),
		Outbox:   outbox.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
		SyncLog:  synclog.NewSQLiteRepository(db),
	}
}

// Manager owns the client database.
type Manager struct {
	*Repositories
	db *sql.DB
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded client schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

// Open opens (creating if needed) the SQLite database at dsn and migrates it.
// The pool holds a single connection: SQLite has one writer and an
// in-memory database exists per connection.
func Open(ctx context.Context, dsn string) (*Manager, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Manager{Repositories: Bind(db), db: db}, nil
}

// InTx runs fn with repositories bound to one transaction. Repositories of
// the Manager itself must not be used inside fn.
func (m *Manager) InTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, Bind(tx))
	})
}

// Repos returns the repositories bound to the database itself.
func (m *Manager) Repos() *Repositories {
	return m.Repositories
}

func (m *Manager) Close() error {
	return m.db.Close()
}
