package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/dbx"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/dmitrijs2005/tradesync/internal/server/models"
	"github.com/dmitrijs2005/tradesync/internal/server/repositories/repomanager"
)

// Postgres stores collections in PostgreSQL. Each Update runs in one
// transaction holding an advisory lock on the user's collection.
type Postgres struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

// NewPostgres wraps an open database. Migrations are not run.
func NewPostgres(db *sql.DB, rm repomanager.RepositoryManager) *Postgres {
	return &Postgres{db: db, rm: rm}
}

// OpenPostgres connects with the pgx driver, checks the connection and
// applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	return NewPostgres(db, rm), nil
}

func (p *Postgres) Update(ctx context.Context, userID string, c records.Collection, fn func(ctx context.Context, tx Tx) error) error {
	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, db dbx.DBTX) error {
		t := &pgTx{user: userID, c: c, p: p, db: db}
		if err := p.rm.Entries(db).Lock(ctx, userID, c); err != nil {
			return err
		}
		return fn(ctx, t)
	})
}

func (p *Postgres) Since(ctx context.Context, userID string, c records.Collection, since int64, limit int) (Page, error) {
	t := &pgTx{user: userID, c: c, p: p, db: p.db}
	return t.Since(ctx, since, limit)
}

func (p *Postgres) Live(ctx context.Context, userID string, c records.Collection) ([]records.Record, error) {
	rows, err := p.rm.Entries(p.db).SelectLive(ctx, userID, c)
	if err != nil {
		return nil, err
	}
	return decodeEntries(rows)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

type pgTx struct {
	user string
	c    records.Collection
	p    *Postgres
	db   dbx.DBTX
}

func (t *pgTx) Load(ctx context.Context, ids []string) (map[string]records.Record, error) {
	repo := t.p.rm.Entries(t.db)
	out := make(map[string]records.Record, len(ids))
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		e, err := repo.Get(ctx, t.user, t.c, id)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rec, err := e.Record()
		if err != nil {
			return nil, err
		}
		out[id] = rec
	}
	return out, nil
}

func (t *pgTx) Save(ctx context.Context, recs []records.Record) error {
	if len(recs) == 0 {
		return nil
	}
	top, err := t.p.rm.Versions(t.db).IncrementCurrentVersion(ctx, t.user, t.c, len(recs))
	if err != nil {
		return err
	}

	repo := t.p.rm.Entries(t.db)
	seq := top - int64(len(recs))
	for _, r := range recs {
		seq++
		e, err := models.NewEntry(t.user, r, seq)
		if err != nil {
			return err
		}
		if err := repo.Upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) Since(ctx context.Context, since int64, limit int) (Page, error) {
	fetch := limit
	if limit > 0 {
		fetch = limit + 1
	}
	rows, err := t.p.rm.Entries(t.db).SelectSince(ctx, t.user, t.c, since, fetch)
	if err != nil {
		return Page{}, err
	}

	p := Page{Last: since}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		p.HasMore = true
	}
	p.Records, err = decodeEntries(rows)
	if err != nil {
		return Page{}, err
	}
	if n := len(rows); n > 0 {
		p.Last = rows[n-1].Seq
	}
	return p, nil
}

func decodeEntries(rows []*models.Entry) ([]records.Record, error) {
	out := make([]records.Record, 0, len(rows))
	for _, e := range rows {
		r, err := e.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
