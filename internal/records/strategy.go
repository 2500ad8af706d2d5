package records

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tradesync/internal/common"
	"github.com/shopspring/decimal"
)

// Strategy describes a trading playbook trades can be attributed to.
type Strategy struct {
	Meta
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Rules       string          `json:"rules,omitempty"`
	DefaultRisk decimal.Decimal `json:"defaultRisk"`
	WinRate     decimal.Decimal `json:"winRate"`
	AvgProfit   decimal.Decimal `json:"avgProfit"`
	AvgLoss     decimal.Decimal `json:"avgLoss"`
	TotalTrades int             `json:"totalTrades"`
}

func (s *Strategy) Collection() Collection { return Strategies }

func (s *Strategy) Validate() error {
	if err := s.Meta.validate(); err != nil {
		return err
	}
	if s.Deleted {
		return nil
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", common.ErrInvalidRecord)
	}
	if s.TotalTrades < 0 {
		return fmt.Errorf("%w: negative totalTrades", common.ErrInvalidRecord)
	}
	return nil
}

func (s *Strategy) Clone() Record {
	c := *s
	c.Meta = s.Meta.clone()
	return &c
}
