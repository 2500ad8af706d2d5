package merge

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/logging"
	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	idA = "550e8400-e29b-41d4-a716-446655440001"
	idB = "550e8400-e29b-41d4-a716-446655440002"
	idC = "550e8400-e29b-41d4-a716-446655440003"
)

var (
	day1  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2  = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day3  = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	clock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func newEngine() *Engine {
	return NewEngine(logging.Nop(), func() time.Time { return clock })
}

func trade(id string, at time.Time, symbol string) *records.Trade {
	return &records.Trade{Meta: records.Meta{ID: id, UpdatedAt: at, IsDirty: true}, Symbol: symbol}
}

func symbolOf(t *testing.T, m map[string]records.Record, id string) string {
	t.Helper()
	r, ok := m[id]
	require.True(t, ok, "record %s missing", id)
	return r.(*records.Trade).Symbol
}

func TestMerge_InsertStampsServerTime(t *testing.T) {
	e := newEngine()
	existing := map[string]records.Record{}

	changed := e.Merge(context.Background(), existing, []records.Record{trade(idA, day1, "EURUSD")})

	assert.Equal(t, []string{idA}, changed)
	h := existing[idA].Header()
	require.NotNil(t, h.ServerUpdatedAt)
	assert.Equal(t, clock, *h.ServerUpdatedAt)
	assert.False(t, h.IsDirty, "dirty flag is never stored server side")
}

func TestMerge_NewerWinsInEitherOrder(t *testing.T) {
	e := newEngine()
	older := func() records.Record { return trade(idA, day1, "old") }
	newer := func() records.Record { return trade(idA, day2, "new") }

	m1 := map[string]records.Record{}
	e.Merge(context.Background(), m1, []records.Record{older()})
	e.Merge(context.Background(), m1, []records.Record{newer()})

	m2 := map[string]records.Record{}
	e.Merge(context.Background(), m2, []records.Record{newer()})
	changed := e.Merge(context.Background(), m2, []records.Record{older()})

	assert.Equal(t, "new", symbolOf(t, m1, idA))
	assert.Equal(t, "new", symbolOf(t, m2, idA))
	assert.Empty(t, changed, "older incoming is discarded")
}

func TestMerge_TieKeepsExisting(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}
	e.Merge(context.Background(), m, []records.Record{trade(idA, day1, "first")})

	changed := e.Merge(context.Background(), m, []records.Record{trade(idA, day1, "second")})

	assert.Empty(t, changed)
	assert.Equal(t, "first", symbolOf(t, m, idA))
}

func TestMerge_IdempotentSecondPassChangesNothing(t *testing.T) {
	e := newEngine()
	batch := func() []records.Record {
		return []records.Record{trade(idA, day1, "a"), trade(idB, day2, "b")}
	}
	m := map[string]records.Record{}

	first := e.Merge(context.Background(), m, batch())
	second := e.Merge(context.Background(), m, batch())

	assert.Equal(t, []string{idA, idB}, first)
	assert.Empty(t, second)
	assert.Len(t, m, 2)
}

func TestMerge_InvalidIDSkippedRestMerged(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}

	out := e.ApplyBatch(context.Background(), m, []Op{
		{Action: records.ActionAdd, Record: trade("a", day1, "bad")},
		{Action: records.ActionAdd, Record: trade(idB, day1, "good")},
		{Action: records.ActionAdd, Record: trade("", day1, "empty")},
	})

	assert.Equal(t, []string{idB}, out.Changed)
	assert.Equal(t, 2, out.Skipped)
	assert.Len(t, m, 1)
}

func TestMerge_DuplicateInBatchKeepsNewest(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}

	changed := e.Merge(context.Background(), m, []records.Record{
		trade(idA, day2, "mid"), trade(idA, day3, "late"), trade(idA, day1, "early"),
	})

	assert.Equal(t, []string{idA}, changed)
	assert.Equal(t, "late", symbolOf(t, m, idA))
}

func TestMerge_ConvergesUnderPermutation(t *testing.T) {
	e := newEngine()
	ids := []string{idA, idB, idC}
	var all []func() records.Record
	for i, id := range ids {
		for d := 0; d < 4; d++ {
			id, at, sym := id, day1.Add(time.Duration(d)*time.Hour), string(rune('a'+i))+string(rune('0'+d))
			all = append(all, func() records.Record { return trade(id, at, sym) })
		}
	}

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		perm := rng.Perm(len(all))
		m := map[string]records.Record{}
		for _, i := range perm {
			e.Merge(context.Background(), m, []records.Record{all[i]()})
		}
		assert.Equal(t, "a3", symbolOf(t, m, idA))
		assert.Equal(t, "b3", symbolOf(t, m, idB))
		assert.Equal(t, "c3", symbolOf(t, m, idC))
	}
}

func deleteOp(id string, at time.Time) Op {
	return Op{Action: records.ActionDelete, Record: &records.Trade{Meta: records.Meta{ID: id, UpdatedAt: at, DeviceID: "dev-2"}}}
}

func TestApplyBatch_AddThenDeleteLeavesNoTrace(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}

	out := e.ApplyBatch(context.Background(), m, []Op{
		{Action: records.ActionAdd, Record: trade(idA, day1, "x")},
		{Action: records.ActionAdd, Record: trade(idB, day1, "y")},
		deleteOp(idA, day2),
	})

	assert.NotContains(t, m, idA)
	assert.Equal(t, []string{idB}, out.Changed)
	assert.Equal(t, []string{idA}, out.Dropped)

	replay := e.ApplyBatch(context.Background(), m, []Op{
		{Action: records.ActionAdd, Record: trade(idA, day1, "x")},
		deleteOp(idA, day2),
	})
	assert.NotContains(t, m, idA, "replaying the batch does not resurrect")
	assert.Empty(t, replay.Changed)
}

func TestApplyBatch_DeleteHeldRecordTombstones(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}
	e.Merge(context.Background(), m, []records.Record{trade(idA, day1, "x")})

	out := e.ApplyBatch(context.Background(), m, []Op{deleteOp(idA, day2)})

	require.Equal(t, []string{idA}, out.Changed)
	h := m[idA].Header()
	assert.True(t, h.Deleted)
	assert.Equal(t, day2, h.UpdatedAt)
	assert.Equal(t, "dev-2", h.DeviceID)
	assert.Equal(t, "x", symbolOf(t, m, idA), "tombstone keeps the last payload")

	again := e.ApplyBatch(context.Background(), m, []Op{deleteOp(idA, day3)})
	assert.Empty(t, again.Changed, "deleting a tombstone is a no-op")
}

func TestApplyBatch_StaleDeleteLoses(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}
	e.Merge(context.Background(), m, []records.Record{trade(idA, day2, "x")})

	out := e.ApplyBatch(context.Background(), m, []Op{deleteOp(idA, day1)})

	assert.Empty(t, out.Changed)
	assert.False(t, m[idA].Header().Deleted)
}

func TestApplyBatch_DeleteUnknownIsNoop(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}

	out := e.ApplyBatch(context.Background(), m, []Op{deleteOp(idC, day1)})

	assert.Empty(t, out.Changed)
	assert.Empty(t, out.Dropped)
	assert.Empty(t, m)
}

func TestApplyBatch_NewerAddResurrectsTombstone(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}
	e.Merge(context.Background(), m, []records.Record{trade(idA, day1, "x")})
	e.ApplyBatch(context.Background(), m, []Op{deleteOp(idA, day2)})

	out := e.ApplyBatch(context.Background(), m, []Op{{Action: records.ActionAdd, Record: trade(idA, day3, "back")}})

	assert.Equal(t, []string{idA}, out.Changed)
	assert.False(t, m[idA].Header().Deleted)
	assert.Equal(t, "back", symbolOf(t, m, idA))
}

func tombstone(id string, at time.Time) *records.Trade {
	tr := trade(id, at, "gone")
	tr.Deleted = true
	return tr
}

func TestMerge_TombstoneOfUnknownRecordLeavesNoTrace(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}

	changed := e.Merge(context.Background(), m, []records.Record{tombstone(idA, day2), trade(idB, day1, "y")})

	assert.Equal(t, []string{idB}, changed)
	assert.NotContains(t, m, idA)
}

func TestMerge_TombstoneOfHeldRecordReplacesIt(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}
	e.Merge(context.Background(), m, []records.Record{trade(idA, day1, "x")})

	changed := e.Merge(context.Background(), m, []records.Record{tombstone(idA, day2)})

	assert.Equal(t, []string{idA}, changed)
	assert.True(t, m[idA].Header().Deleted)
}

func TestApplyBatch_AddThenTombstoneUpdateIsDropped(t *testing.T) {
	e := newEngine()
	m := map[string]records.Record{}

	out := e.ApplyBatch(context.Background(), m, []Op{
		{Action: records.ActionAdd, Record: trade(idA, day1, "x")},
		{Action: records.ActionUpdate, Record: tombstone(idA, day2)},
	})

	assert.Empty(t, out.Changed)
	assert.Equal(t, []string{idA}, out.Dropped)
	assert.Empty(t, m)
}
