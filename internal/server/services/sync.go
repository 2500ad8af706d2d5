package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/cursor"
	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/dmitrijs2005/tradesync/internal/server/idempotency"
	"github.com/dmitrijs2005/tradesync/internal/server/merge"
	"github.com/dmitrijs2005/tradesync/internal/server/store"
	"golang.org/x/sync/errgroup"
)

// Limits of GET /api/changes.
const (
	DefaultChangesLimit = 100
	MaxChangesLimit     = 1000
)

// SyncService merges client batches into the store and answers incremental
// pulls.
type SyncService struct {
	store  store.Store
	cache  *idempotency.Cache
	engine *merge.Engine
	logger logging.Logger
	now    func() time.Time
}

func NewSyncService(s store.Store, cache *idempotency.Cache, logger logging.Logger, now func() time.Time) *SyncService {
	if now == nil {
		now = time.Now
	}
	return &SyncService{
		store:  s,
		cache:  cache,
		engine: merge.NewEngine(logger, now),
		logger: logger,
		now:    now,
	}
}

// batch is the decoded work for one collection.
type batch struct {
	ops     []merge.Op
	mutKeys []string // per-mutation keys parallel to ops, "" when absent
}

type collectionResult struct {
	applied []string
	skipped int
	changes store.Page
	live    int
}

// Sync applies a client batch and returns everything the client has not
// seen yet. Malformed records are skipped and counted; they never fail the
// request.
func (s *SyncService) Sync(ctx context.Context, userID string, req *records.SyncRequest) (*records.SyncResponse, error) {
	tok := s.decodeToken(ctx, req.LastSyncToken)

	batches, skipped := s.decode(ctx, userID, req)

	results := make(map[records.Collection]*collectionResult, len(records.AllCollections))
	for _, c := range records.AllCollections {
		results[c] = &collectionResult{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range records.AllCollections {
		res := results[c]
		b := batches[c]
		g.Go(func() error {
			return s.syncCollection(gctx, userID, c, b, tok.Seq(c), res)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	resp := &records.SyncResponse{Success: true}
	next := cursor.Token{IssuedAt: now}
	var changed []records.Record
	for _, c := range records.AllCollections {
		r := results[c]
		resp.Applied.Set(c, r.applied)
		skipped += r.skipped
		changed = append(changed, r.changes.Records...)
		next = next.With(c, r.changes.Last)
	}
	resp.Skipped = skipped
	resp.ServerChanges = nonNil(records.Split(changed))
	resp.SyncToken = next.Encode()
	resp.Stats = records.SyncStats{
		TotalTrades:     results[records.Trades].live,
		TotalStrategies: results[records.Strategies].live,
		LastSync:        now,
	}

	s.logger.Info(ctx, "sync completed",
		"user", userID, "device", req.DeviceID,
		"applied_trades", len(resp.Applied.Trades), "applied_strategies", len(resp.Applied.Strategies),
		"skipped", skipped, "server_changes", len(changed))

	return resp, nil
}

func (s *SyncService) syncCollection(ctx context.Context, userID string, c records.Collection, b batch, since int64, res *collectionResult) error {
	if len(b.ops) == 0 {
		page, err := s.store.Since(ctx, userID, c, since, 0)
		if err != nil {
			return fmt.Errorf("read %s: %w", c, err)
		}
		res.applied = []string{}
		res.changes = page
		return s.countLive(ctx, userID, c, res)
	}

	var processed []string
	err := s.store.Update(ctx, userID, c, func(ctx context.Context, tx store.Tx) error {
		ops := make([]merge.Op, 0, len(b.ops))
		for i, op := range b.ops {
			if k := b.mutKeys[i]; k != "" {
				if s.cache.Seen(k) {
					s.logger.Debug(ctx, "mutation already applied", "key", k)
					continue
				}
				processed = append(processed, k)
			}
			ops = append(ops, op)
		}

		ids := make([]string, 0, len(ops))
		for _, op := range ops {
			ids = append(ids, op.Record.Header().ID)
		}
		held, err := tx.Load(ctx, ids)
		if err != nil {
			return err
		}

		out := s.engine.ApplyBatch(ctx, held, ops)
		res.applied = out.Changed
		res.skipped = out.Skipped

		toSave := make([]records.Record, 0, len(out.Changed))
		for _, id := range out.Changed {
			toSave = append(toSave, held[id])
		}
		if err := tx.Save(ctx, toSave); err != nil {
			return err
		}

		res.changes, err = tx.Since(ctx, since, 0)
		return err
	})
	if err != nil {
		return fmt.Errorf("merge %s: %w", c, err)
	}

	for _, k := range processed {
		s.cache.Remember(k)
	}
	return s.countLive(ctx, userID, c, res)
}

func (s *SyncService) countLive(ctx context.Context, userID string, c records.Collection, res *collectionResult) error {
	live, err := s.store.Live(ctx, userID, c)
	if err != nil {
		return fmt.Errorf("count %s: %w", c, err)
	}
	res.live = len(live)
	return nil
}

// decode turns the request into per-collection operation lists: snapshot
// records first, then queued mutations in the order they were sent.
func (s *SyncService) decode(ctx context.Context, userID string, req *records.SyncRequest) (map[records.Collection]batch, int) {
	batches := make(map[records.Collection]batch, len(records.AllCollections))
	skipped := 0

	add := func(c records.Collection, op merge.Op, key string) {
		if h := op.Record.Header(); h.DeviceID == "" {
			h.DeviceID = req.DeviceID
		}
		b := batches[c]
		b.ops = append(b.ops, op)
		b.mutKeys = append(b.mutKeys, key)
		batches[c] = b
	}

	for _, c := range records.AllCollections {
		for i, raw := range req.Raw(c) {
			rec, err := records.Decode(c, raw)
			if err != nil {
				skipped++
				s.logger.Warn(ctx, "skipping malformed record", "collection", c, "index", i, "error", err)
				continue
			}
			add(c, merge.Op{Action: records.ActionUpdate, Record: rec}, "")
		}
	}

	for i, m := range req.Changes {
		op, c, err := decodeMutation(m)
		if err != nil {
			skipped++
			s.logger.Warn(ctx, "skipping malformed mutation", "index", i, "entry", m.EntryID, "error", err)
			continue
		}
		key := ""
		if m.IdempotencyKey != "" {
			key = idempotency.MutationKey(userID, m.IdempotencyKey)
		}
		add(c, op, key)
	}

	return batches, skipped
}

func decodeMutation(m records.Mutation) (merge.Op, records.Collection, error) {
	c, err := m.RecordType.Collection()
	if err != nil {
		return merge.Op{}, "", err
	}
	action, err := records.ParseAction(string(m.Action))
	if err != nil {
		return merge.Op{}, "", err
	}

	if action == records.ActionDelete {
		meta, err := records.DecodeMeta(m.Payload)
		if err != nil {
			return merge.Op{}, "", err
		}
		rec, _ := c.New()
		*rec.Header() = meta
		return merge.Op{Action: action, Record: rec}, c, nil
	}

	rec, err := records.Decode(c, m.Payload)
	if err != nil {
		return merge.Op{}, "", err
	}
	return merge.Op{Action: action, Record: rec}, c, nil
}

// Changes returns at most limit changes per collection after the sequences
// recorded in the since token.
func (s *SyncService) Changes(ctx context.Context, userID, since string, limit int) (*records.ChangesResponse, error) {
	if limit <= 0 {
		limit = DefaultChangesLimit
	}
	if limit > MaxChangesLimit {
		limit = MaxChangesLimit
	}

	var token *string
	if since != "" {
		token = &since
	}
	tok := s.decodeToken(ctx, token)

	next := cursor.Token{IssuedAt: s.now().UTC()}
	resp := &records.ChangesResponse{Trades: []*records.Trade{}, Strategies: []*records.Strategy{}}
	var all []records.Record
	for _, c := range records.AllCollections {
		page, err := s.store.Since(ctx, userID, c, tok.Seq(c), limit)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c, err)
		}
		all = append(all, page.Records...)
		next = next.With(c, page.Last)
		resp.HasMore = resp.HasMore || page.HasMore
	}

	cols := nonNil(records.Split(all))
	resp.Trades, resp.Strategies = cols.Trades, cols.Strategies
	resp.SyncToken = next.Encode()
	return resp, nil
}

// Stats aggregates the user's live records.
func (s *SyncService) Stats(ctx context.Context, userID string) (*records.StatsResponse, error) {
	var all []records.Record
	for _, c := range records.AllCollections {
		live, err := s.store.Live(ctx, userID, c)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c, err)
		}
		all = append(all, live...)
	}
	cols := records.Split(all)
	stats := records.ComputeStats(cols.Trades, cols.Strategies, s.now())
	return &stats, nil
}

// Ping checks the backing store.
func (s *SyncService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *SyncService) decodeToken(ctx context.Context, raw *string) cursor.Token {
	if raw == nil {
		return cursor.Token{}
	}
	tok, err := cursor.Decode(*raw)
	if err != nil {
		s.logger.Warn(ctx, "ignoring malformed sync token, sending full history", "error", err)
		return cursor.Token{}
	}
	return tok
}

func nonNil(c records.Collections) records.Collections {
	if c.Trades == nil {
		c.Trades = []*records.Trade{}
	}
	if c.Strategies == nil {
		c.Strategies = []*records.Strategy{}
	}
	return c
}
