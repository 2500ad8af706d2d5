package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/tradesync/internal/records"
)

type memEntry struct {
	rec records.Record
	seq int64
}

type memCollection struct {
	mu   sync.Mutex
	seq  int64
	recs map[string]memEntry
}

type memKey struct {
	user string
	c    records.Collection
}

// Memory keeps everything in process memory. Data is lost on restart.
type Memory struct {
	mu   sync.Mutex
	cols map[memKey]*memCollection
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cols: make(map[memKey]*memCollection)}
}

func (m *Memory) collection(userID string, c records.Collection) *memCollection {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := memKey{user: userID, c: c}
	col, ok := m.cols[k]
	if !ok {
		col = &memCollection{recs: make(map[string]memEntry)}
		m.cols[k] = col
	}
	return col
}

func (m *Memory) Update(ctx context.Context, userID string, c records.Collection, fn func(ctx context.Context, tx Tx) error) error {
	col := m.collection(userID, c)
	col.mu.Lock()
	defer col.mu.Unlock()

	tx := &memTx{col: col, seq: col.seq, staged: make(map[string]memEntry)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for id, e := range tx.staged {
		col.recs[id] = e
	}
	col.seq = tx.seq
	return nil
}

func (m *Memory) Since(ctx context.Context, userID string, c records.Collection, since int64, limit int) (Page, error) {
	col := m.collection(userID, c)
	col.mu.Lock()
	defer col.mu.Unlock()

	return page(col.recs, nil, since, limit), nil
}

func (m *Memory) Live(ctx context.Context, userID string, c records.Collection) ([]records.Record, error) {
	col := m.collection(userID, c)
	col.mu.Lock()
	defer col.mu.Unlock()

	entries := sorted(col.recs, nil)
	out := make([]records.Record, 0, len(entries))
	for _, e := range entries {
		if !e.rec.Header().Deleted {
			out = append(out, e.rec.Clone())
		}
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

type memTx struct {
	col    *memCollection
	seq    int64
	staged map[string]memEntry
}

func (t *memTx) Load(_ context.Context, ids []string) (map[string]records.Record, error) {
	out := make(map[string]records.Record, len(ids))
	for _, id := range ids {
		if e, ok := t.staged[id]; ok {
			out[id] = e.rec.Clone()
			continue
		}
		if e, ok := t.col.recs[id]; ok {
			out[id] = e.rec.Clone()
		}
	}
	return out, nil
}

func (t *memTx) Save(_ context.Context, recs []records.Record) error {
	for _, r := range recs {
		t.seq++
		t.staged[r.Header().ID] = memEntry{rec: r.Clone(), seq: t.seq}
	}
	return nil
}

func (t *memTx) Since(_ context.Context, since int64, limit int) (Page, error) {
	return page(t.col.recs, t.staged, since, limit), nil
}

// sorted returns the entries of base overlaid with staged, in sequence order.
func sorted(base, staged map[string]memEntry) []memEntry {
	all := make([]memEntry, 0, len(base)+len(staged))
	for id, e := range base {
		if _, ok := staged[id]; !ok {
			all = append(all, e)
		}
	}
	for _, e := range staged {
		all = append(all, e)
	}
	slices.SortFunc(all, func(a, b memEntry) int { return cmp.Compare(a.seq, b.seq) })
	return all
}

func page(base, staged map[string]memEntry, since int64, limit int) Page {
	p := Page{Last: since}
	for _, e := range sorted(base, staged) {
		if e.seq <= since {
			continue
		}
		if limit > 0 && len(p.Records) == limit {
			p.HasMore = true
			break
		}
		p.Records = append(p.Records, e.rec.Clone())
		p.Last = e.seq
	}
	return p
}
