// Package syncer runs the client side of synchronization: it sends queued
// mutations (or dirty records) to the server, applies what the server
// returns and keeps the local cursor.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/client/client"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/tradesync/internal/client/repositories/synclog"
	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/google/uuid"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
	StatusOffline Status = "offline"
)

// Request building modes.
const (
	ModeOutbox   = "outbox"
	ModeSnapshot = "snapshot"
)

// requestNamespace seeds the UUIDv5 request keys.
var requestNamespace = uuid.MustParse("3d1c6a52-7f0e-4a8e-9a51-5b8b1f7c2e90")

// Storage is the local database used by the engine.
type Storage interface {
	Repos() *repositories.Repositories
	InTx(ctx context.Context, fn func(ctx context.Context, r *repositories.Repositories) error) error
}

type Options struct {
	Mode                string
	Interval            time.Duration
	OnlineCheckInterval time.Duration
	Logger              logging.Logger
}

// State is a snapshot of the engine for status reporting.
type State struct {
	Status       Status
	Online       bool
	DeviceID     string
	Cursor       string
	LastSyncTime time.Time
	Pending      int
	LastError    error
}

// Result describes one cycle.
type Result struct {
	// Skipped is set when the cycle did nothing because the engine was
	// offline or another cycle was running.
	Skipped  bool
	Sent     int
	Applied  int
	Received int
	Cursor   string
}

// Engine is the sync session of one device. At most one cycle runs at a
// time.
type Engine struct {
	db       Storage
	client   client.Client
	deviceID string
	mode     string
	interval time.Duration
	probe    time.Duration
	logger   logging.Logger
	now      func() time.Time

	running atomic.Bool
	online  atomic.Bool
	trigger chan struct{}

	mu        sync.Mutex
	status    Status
	lastError error
}

func NewEngine(db Storage, c client.Client, deviceID string, opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeOutbox
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.OnlineCheckInterval <= 0 {
		opts.OnlineCheckInterval = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	e := &Engine{
		db:       db,
		client:   c,
		deviceID: deviceID,
		mode:     opts.Mode,
		interval: opts.Interval,
		probe:    opts.OnlineCheckInterval,
		logger:   opts.Logger.With("module", "syncer"),
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		status:   StatusIdle,
	}
	e.online.Store(true)
	return e
}

// Trigger asks Run for a cycle. Requests made while one is pending are
// collapsed.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

func (e *Engine) setStatus(s Status, err error) {
	e.mu.Lock()
	e.status = s
	e.lastError = err
	e.mu.Unlock()
}

// SetOnline records the connectivity state. Going offline sets the
// offline status unless a cycle is running; coming back online triggers a
// cycle.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	was := e.online.Swap(online)
	if was == online {
		return
	}
	if online {
		e.logger.Info(ctx, "server reachable again")
		e.mu.Lock()
		if e.status == StatusOffline {
			e.status = StatusIdle
		}
		e.mu.Unlock()
		e.Trigger()
		return
	}
	e.logger.Warn(ctx, "server unreachable, switching to offline")
	if !e.running.Load() {
		e.setStatus(StatusOffline, nil)
	}
}

// State reports the current status together with the persisted sync state.
func (e *Engine) State(ctx context.Context) (State, error) {
	e.mu.Lock()
	st := State{Status: e.status, LastError: e.lastError}
	e.mu.Unlock()
	st.Online = e.online.Load()
	st.DeviceID = e.deviceID

	r := e.db.Repos()
	var err error
	if st.Cursor, err = r.Metadata.GetString(ctx, metadata.KeySyncToken); err != nil {
		return st, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	if st.LastSyncTime, err = r.Metadata.GetTime(ctx, metadata.KeyLastSyncTime); err != nil {
		return st, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	if st.Pending, err = r.Outbox.Count(ctx); err != nil {
		return st, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return st, nil
}

// RunCycle performs one sync round trip. It is a no-op while offline or
// while another cycle is in flight. On failure local data is left as it
// was and the error is returned; the status becomes StatusError, or
// StatusOffline when the server was reported unreachable meanwhile.
func (e *Engine) RunCycle(ctx context.Context) (Result, error) {
	if !e.online.Load() {
		e.setStatus(StatusOffline, nil)
		return Result{Skipped: true}, nil
	}
	if !e.running.CompareAndSwap(false, true) {
		return Result{Skipped: true}, nil
	}
	defer e.running.Store(false)

	e.setStatus(StatusSyncing, nil)

	res, err := e.cycle(ctx)
	if err != nil {
		status := StatusError
		if IsOffline(err) && !e.online.Load() {
			// the watcher went offline while this cycle ran
			status = StatusOffline
		}
		e.setStatus(status, err)
		e.logger.Error(ctx, "sync failed", "error", err)
		e.record(ctx, synclog.LevelError, "sync failed", err.Error())
		return Result{}, err
	}

	e.setStatus(StatusIdle, nil)
	e.logger.Info(ctx, "sync completed", "sent", res.Sent, "applied", res.Applied, "received", res.Received)
	return res, nil
}

func (e *Engine) cycle(ctx context.Context) (Result, error) {
	r := e.db.Repos()

	cursor, err := r.Metadata.GetString(ctx, metadata.KeySyncToken)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	queued, err := r.Outbox.List(ctx, 0)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	req, sent, err := e.buildRequest(ctx, r, cursor, queued)
	if err != nil {
		return Result{}, err
	}

	var maxSeq int64
	if n := len(queued); n > 0 {
		maxSeq = queued[n-1].Seq
	}

	resp, err := e.client.Sync(ctx, requestKey(e.deviceID, cursor, queued), req)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Sent:    len(queued),
		Applied: len(resp.Applied.Trades) + len(resp.Applied.Strategies),
		Cursor:  resp.SyncToken,
	}

	err = e.db.InTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		n, err := applyServerChanges(ctx, r, resp.ServerChanges.Records(), maxSeq)
		if err != nil {
			return err
		}
		res.Received = n

		if maxSeq > 0 {
			if err := r.Outbox.DeleteUpTo(ctx, maxSeq); err != nil {
				return err
			}
		}
		if err := clearSent(ctx, r, sent, maxSeq); err != nil {
			return err
		}

		if err := r.Metadata.SetString(ctx, metadata.KeySyncToken, resp.SyncToken); err != nil {
			return err
		}
		if err := r.Metadata.SetTime(ctx, metadata.KeyLastSyncTime, e.now().UTC()); err != nil {
			return err
		}
		return r.SyncLog.Append(ctx, synclog.Entry{
			CreatedAt: e.now().UTC(),
			Level:     synclog.LevelInfo,
			Message:   "sync completed",
			Details:   fmt.Sprintf("sent=%d applied=%d received=%d", res.Sent, res.Applied, res.Received),
		}, synclog.DefaultKeep)
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: apply sync response: %w", common.ErrStorage, err)
	}
	return res, nil
}

// recordRef identifies a local record.
type recordRef struct {
	rt records.RecordType
	id string
}

// buildRequest returns the request body and the records it covers.
func (e *Engine) buildRequest(ctx context.Context, r *repositories.Repositories, cursor string, queued []*outbox.Entry) (*records.SyncRequest, []recordRef, error) {
	req := &records.SyncRequest{DeviceID: e.deviceID}
	if cursor != "" {
		req.LastSyncToken = &cursor
	}

	var sent []recordRef
	seen := make(map[recordRef]bool)
	add := func(ref recordRef) {
		if !seen[ref] {
			seen[ref] = true
			sent = append(sent, ref)
		}
	}
	for _, q := range queued {
		add(recordRef{q.RecordType, q.RecordID})
	}

	if e.mode == ModeSnapshot {
		dirty := make([]records.Record, 0)
		for _, c := range records.AllCollections {
			recs, err := r.Entries.Dirty(ctx, c)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
			}
			for _, rec := range recs {
				add(recordRef{c.Type(), rec.Header().ID})
			}
			dirty = append(dirty, recs...)
		}
		cols := records.Split(dirty)
		var err error
		if req.Trades, err = records.Encode(cols.Trades); err != nil {
			return nil, nil, err
		}
		if req.Strategies, err = records.Encode(cols.Strategies); err != nil {
			return nil, nil, err
		}
		return req, sent, nil
	}

	req.Trades = []json.RawMessage{}
	req.Strategies = []json.RawMessage{}
	req.Changes = make([]records.Mutation, 0, len(queued))
	for _, q := range queued {
		req.Changes = append(req.Changes, q.Mutation)
	}
	return req, sent, nil
}

// applyServerChanges stores what the server returned, except for records
// that were mutated locally after the batch was built.
func applyServerChanges(ctx context.Context, r *repositories.Repositories, changes []records.Record, maxSeq int64) (int, error) {
	n := 0
	for _, rec := range changes {
		h := rec.Header()
		pending, err := r.Outbox.PendingAfter(ctx, rec.Collection().Type(), h.ID, maxSeq)
		if err != nil {
			return n, err
		}
		if pending {
			continue
		}
		if err := r.Entries.Upsert(ctx, rec, false); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// clearSent resets the dirty flag of sent records that have no queued
// mutations left. Confirmed tombstones the server never stamped are
// removed, since no other device can hold those records.
func clearSent(ctx context.Context, r *repositories.Repositories, sent []recordRef, maxSeq int64) error {
	ids := make(map[records.Collection][]string)
	for _, ref := range sent {
		pending, err := r.Outbox.PendingAfter(ctx, ref.rt, ref.id, maxSeq)
		if err != nil {
			return err
		}
		if pending {
			continue
		}
		c, err := ref.rt.Collection()
		if err != nil {
			return err
		}
		ids[c] = append(ids[c], ref.id)
	}
	for c, list := range ids {
		if _, err := r.Entries.PurgeLocalTombstones(ctx, c, list); err != nil {
			return err
		}
		if err := r.Entries.ClearDirty(ctx, c, list); err != nil {
			return err
		}
	}
	return nil
}

// requestKey derives the Idempotency-Key of a round from what it sends, so
// a retried batch reuses the key of the failed attempt.
func requestKey(deviceID, cursor string, queued []*outbox.Entry) string {
	var b strings.Builder
	b.WriteString(deviceID)
	b.WriteByte('\n')
	b.WriteString(cursor)
	for _, q := range queued {
		b.WriteByte('\n')
		b.WriteString(q.IdempotencyKey)
	}
	return uuid.NewSHA1(requestNamespace, []byte(b.String())).String()
}

func (e *Engine) record(ctx context.Context, level, msg, details string) {
	err := e.db.Repos().SyncLog.Append(ctx, synclog.Entry{
		CreatedAt: e.now().UTC(),
		Level:     level,
		Message:   msg,
		Details:   details,
	}, synclog.DefaultKeep)
	if err != nil {
		e.logger.Warn(ctx, "cannot write sync log", "error", err)
	}
}

// IsOffline reports whether err means the server could not be reached.
func IsOffline(err error) bool {
	return errors.Is(err, client.ErrUnavailable)
}
