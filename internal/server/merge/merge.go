// Package merge reconciles incoming records with the server copy of one
// user's collection using last-write-wins on updatedAt.
//
// The outcome depends only on the timestamps involved, never on the order
// in which records arrive: a strictly newer record replaces the held one,
// an equal or older one is discarded and the held copy wins ties.
package merge

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/records"
)

// Engine applies merges. It holds no per-user state and is safe for
// concurrent use; callers serialize access to each collection.
type Engine struct {
	logger logging.Logger
	now    func() time.Time
}

// NewEngine creates an Engine. A nil clock defaults to time.Now.
func NewEngine(logger logging.Logger, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{logger: logger, now: now}
}

// Op is one queued mutation. For deletes only the record header (id,
// updatedAt, deviceId) is consulted.
type Op struct {
	Action records.Action
	Record records.Record
}

// Outcome reports what a merge changed.
type Outcome struct {
	// Changed lists ids now held in a new version, in first-change order.
	Changed []string
	// Dropped lists ids inserted and deleted within the same batch. They
	// leave no trace in the collection.
	Dropped []string
	// Skipped counts records rejected for an invalid id.
	Skipped int
}

// Merge folds incoming into existing, mutating existing in place, and
// returns the ids that changed.
func (e *Engine) Merge(ctx context.Context, existing map[string]records.Record, incoming []records.Record) []string {
	ops := make([]Op, 0, len(incoming))
	for _, r := range incoming {
		ops = append(ops, Op{Action: records.ActionUpdate, Record: r})
	}
	return e.ApplyBatch(ctx, existing, ops).Changed
}

// ApplyBatch folds an ordered list of mutations into existing.
//
// Adds and updates follow Merge. A delete of a record that was inserted
// earlier in the same batch removes it entirely; a delete of an unknown id
// is a no-op; a delete of a held record turns it into a tombstone when the
// delete is newer than the held version. Incoming tombstones (deleted set
// on an add or update) of ids the collection did not hold are treated the
// same way as deletes of them.
func (e *Engine) ApplyBatch(ctx context.Context, existing map[string]records.Record, ops []Op) Outcome {
	now := e.now().UTC()
	held := make(map[string]struct{}, len(existing))
	for id := range existing {
		held[id] = struct{}{}
	}

	var (
		out     Outcome
		changed = newOrderedSet()
	)

	for _, op := range ops {
		h := op.Record.Header()
		if !records.ValidID(h.ID) {
			out.Skipped++
			e.logger.Warn(ctx, "skipping record with invalid id",
				"collection", op.Record.Collection(), "id", h.ID, "action", op.Action)
			continue
		}

		switch op.Action {
		case records.ActionDelete:
			cur, ok := existing[h.ID]
			if !ok {
				e.logger.Debug(ctx, "delete of unknown record ignored", "id", h.ID)
				continue
			}
			if _, wasHeld := held[h.ID]; !wasHeld {
				delete(existing, h.ID)
				changed.remove(h.ID)
				out.Dropped = append(out.Dropped, h.ID)
				continue
			}
			if cur.Header().Deleted || !h.UpdatedAt.After(cur.Header().UpdatedAt) {
				continue
			}
			tomb := cur.Clone()
			th := tomb.Header()
			th.Deleted = true
			th.UpdatedAt = h.UpdatedAt
			th.DeviceID = h.DeviceID
			stamp(th, now)
			existing[h.ID] = tomb
			changed.add(h.ID)

		default:
			cur, ok := existing[h.ID]
			if _, wasHeld := held[h.ID]; h.Deleted && !wasHeld {
				// a tombstone for a record the server never held
				if ok {
					delete(existing, h.ID)
					changed.remove(h.ID)
					out.Dropped = append(out.Dropped, h.ID)
				} else {
					e.logger.Debug(ctx, "tombstone of unknown record ignored", "id", h.ID)
				}
				continue
			}
			if ok && !h.UpdatedAt.After(cur.Header().UpdatedAt) {
				continue
			}
			stamp(h, now)
			existing[h.ID] = op.Record
			changed.add(h.ID)
		}
	}

	out.Changed = changed.items()
	return out
}

func stamp(h *records.Meta, now time.Time) {
	t := now
	h.ServerUpdatedAt = &t
	h.IsDirty = false
}

type orderedSet struct {
	order []string
	seen  map[string]bool
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]bool{}}
}

func (s *orderedSet) add(id string) {
	if !s.seen[id] {
		s.seen[id] = true
		s.order = append(s.order, id)
	}
}

func (s *orderedSet) remove(id string) {
	if !s.seen[id] {
		return
	}
	delete(s.seen, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *orderedSet) items() []string {
	if s.order == nil {
		return []string{}
	}
	return s.order
}
