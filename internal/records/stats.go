package records

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeStats aggregates live (non-deleted) records. PnL figures are
// rounded to cents and only closed trades with a PnL contribute.
func ComputeStats(trades []*Trade, strategies []*Strategy, now time.Time) StatsResponse {
	var (
		out    StatsResponse
		total  = decimal.Zero
		wins   int
		closed int
	)

	for _, t := range trades {
		if t.Deleted {
			continue
		}
		out.Trades.Total++
		switch t.AccountType {
		case AccountDemo:
			out.Trades.Demo++
		case AccountReal:
			out.Trades.Real++
		}
		if t.Status == StatusOpen {
			out.Trades.Open++
		}
		if t.Status == StatusClosed && t.PnL.Valid {
			closed++
			total = total.Add(t.PnL.Decimal)
			if t.PnL.Decimal.IsPositive() {
				wins++
			}
		}
	}
	out.Trades.Closed = closed

	for _, s := range strategies {
		if !s.Deleted {
			out.Strategies.Total++
		}
	}

	out.Performance.TotalPnL = total.Round(2)
	out.Performance.WinRate = decimal.Zero
	out.Performance.AvgPnL = decimal.Zero
	if closed > 0 {
		n := decimal.NewFromInt(int64(closed))
		out.Performance.WinRate = decimal.NewFromInt(int64(wins)).Mul(hundred).Div(n).Round(2)
		out.Performance.AvgPnL = total.Div(n).Round(2)
	}
	out.LastUpdated = now.UTC()
	return out
}
