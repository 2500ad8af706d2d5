package records

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountDemo AccountType = "demo"
	AccountReal AccountType = "real"
)

type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

type TradeStatus string

const (
	StatusOpen   TradeStatus = "open"
	StatusClosed TradeStatus = "closed"
)

// Trade is a single journal entry for an opened or closed position.
type Trade struct {
	Meta
	StrategyID  string              `json:"strategyId,omitempty"`
	Symbol      string              `json:"symbol"`
	AccountType AccountType         `json:"accountType,omitempty"`
	Direction   Direction           `json:"direction,omitempty"`
	Quantity    decimal.Decimal     `json:"quantity"`
	EntryPrice  decimal.Decimal     `json:"entryPrice"`
	ExitPrice   decimal.NullDecimal `json:"exitPrice"`
	EntryDate   string              `json:"entryDate,omitempty"`
	EntryTime   string              `json:"entryTime,omitempty"`
	ExitDate    string              `json:"exitDate,omitempty"`
	ExitTime    string              `json:"exitTime,omitempty"`
	StopLoss    decimal.NullDecimal `json:"stopLoss"`
	TakeProfit  decimal.NullDecimal `json:"takeProfit"`
	Status      TradeStatus         `json:"status,omitempty"`
	PnL         decimal.NullDecimal `json:"pnl"`
	NetPnL      decimal.NullDecimal `json:"netPnl"`
	Commission  decimal.NullDecimal `json:"commission"`
	Notes       string              `json:"notes,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
}

func (t *Trade) Collection() Collection { return Trades }

func (t *Trade) Validate() error {
	if err := t.Meta.validate(); err != nil {
		return err
	}
	if t.Deleted {
		return nil
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", common.ErrInvalidRecord)
	}
	if t.StrategyID != "" && !ValidID(t.StrategyID) {
		return fmt.Errorf("%w: strategyId %q", common.ErrInvalidRecord, t.StrategyID)
	}
	switch t.AccountType {
	case "", AccountDemo, AccountReal:
	default:
		return fmt.Errorf("%w: accountType %q", common.ErrInvalidRecord, t.AccountType)
	}
	switch t.Direction {
	case "", Long, Short:
	default:
		return fmt.Errorf("%w: direction %q", common.ErrInvalidRecord, t.Direction)
	}
	switch t.Status {
	case "", StatusOpen, StatusClosed:
	default:
		return fmt.Errorf("%w: status %q", common.ErrInvalidRecord, t.Status)
	}
	if t.Quantity.IsNegative() {
		return fmt.Errorf("%w: negative quantity", common.ErrInvalidRecord)
	}
	return nil
}

func (t *Trade) Clone() Record {
	c := *t
	c.Meta = t.Meta.clone()
	c.Tags = slices.Clone(t.Tags)
	return &c
}
