package records

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Mutation is one outbox entry as sent to the server.
type Mutation struct {
	EntryID        string          `json:"entryId"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Action         Action          `json:"action"`
	RecordType     RecordType      `json:"recordType"`
	Payload        json.RawMessage `json:"payload"`
	EnqueuedAt     time.Time       `json:"enqueuedAt"`
}

// SyncRequest is the body of POST /api/sync.
//
// Records in Trades and Strategies are kept raw so that a malformed record
// can be skipped without failing the batch.
type SyncRequest struct {
	Trades        []json.RawMessage `json:"trades"`
	Strategies    []json.RawMessage `json:"strategies"`
	Changes       []Mutation        `json:"changes,omitempty"`
	LastSyncToken *string           `json:"lastSyncToken"`
	DeviceID      string            `json:"deviceId"`
}

// Raw returns the snapshot records of collection c.
func (r *SyncRequest) Raw(c Collection) []json.RawMessage {
	if c == Strategies {
		return r.Strategies
	}
	return r.Trades
}

// Collections carries typed records of both collections.
type Collections struct {
	Trades     []*Trade    `json:"trades"`
	Strategies []*Strategy `json:"strategies"`
}

// Len is the total number of records.
func (c Collections) Len() int { return len(c.Trades) + len(c.Strategies) }

// Records flattens c, trades first.
func (c Collections) Records() []Record {
	out := make([]Record, 0, c.Len())
	for _, t := range c.Trades {
		out = append(out, t)
	}
	for _, s := range c.Strategies {
		out = append(out, s)
	}
	return out
}

// IDs lists changed identifiers per collection.
type IDs struct {
	Trades     []string `json:"trades"`
	Strategies []string `json:"strategies"`
}

// Set stores ids for collection c.
func (i *IDs) Set(c Collection, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	if c == Strategies {
		i.Strategies = ids
		return
	}
	i.Trades = ids
}

// SyncStats summarizes the user's server-held data after a sync.
type SyncStats struct {
	TotalTrades     int       `json:"totalTrades"`
	TotalStrategies int       `json:"totalStrategies"`
	LastSync        time.Time `json:"lastSync"`
}

// SyncResponse is the body returned by POST /api/sync.
type SyncResponse struct {
	Success       bool        `json:"success"`
	SyncToken     string      `json:"syncToken"`
	Applied       IDs         `json:"applied"`
	Skipped       int         `json:"skipped,omitempty"`
	ServerChanges Collections `json:"serverChanges"`
	Stats         SyncStats   `json:"stats"`
}

// ChangesResponse is the body returned by GET /api/changes.
type ChangesResponse struct {
	Trades     []*Trade    `json:"trades"`
	Strategies []*Strategy `json:"strategies"`
	SyncToken  string      `json:"syncToken"`
	HasMore    bool        `json:"hasMore"`
}

// TradeStats are the trade counters of GET /api/stats.
type TradeStats struct {
	Total  int `json:"total"`
	Demo   int `json:"demo"`
	Real   int `json:"real"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// StrategyStats are the strategy counters of GET /api/stats.
type StrategyStats struct {
	Total int `json:"total"`
}

// Performance aggregates closed trades with a known PnL.
type Performance struct {
	TotalPnL decimal.Decimal `json:"totalPnL"`
	WinRate  decimal.Decimal `json:"winRate"`
	AvgPnL   decimal.Decimal `json:"avgPnL"`
}

// StatsResponse is the body returned by GET /api/stats.
type StatsResponse struct {
	Trades      TradeStats    `json:"trades"`
	Strategies  StrategyStats `json:"strategies"`
	Performance Performance   `json:"performance"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
