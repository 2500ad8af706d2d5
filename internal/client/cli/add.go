package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type tradeOptions struct {
	symbol      string
	strategyID  string
	accountType string
	direction   string
	status      string
	quantity    string
	entryPrice  string
	exitPrice   string
	stopLoss    string
	takeProfit  string
	pnl         string
	netPnL      string
	commission  string
	entryDate   string
	entryTime   string
	exitDate    string
	exitTime    string
	notes       string
	tags        []string
	raw         string
}

func newAddTradeCommand(s *session) *cobra.Command {
	opts := &tradeOptions{}

	cmd := &cobra.Command{
		Use:   "add-trade",
		Short: "Record a trade",
		Long: `Record a trade locally and queue it for the server.

Fields are given as flags, or the whole record as JSON with --json.

Example:
  tradesync add-trade --symbol EURUSD --direction long --quantity 1.5 --entry-price 1.085
  tradesync add-trade --json '{"symbol":"BTCUSD","status":"open"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := opts.payload()
			if err != nil {
				return err
			}
			return s.add(cmd, records.TypeTrade, payload)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.symbol, "symbol", "", "instrument symbol")
	f.StringVar(&opts.strategyID, "strategy-id", "", "id of the strategy the trade follows")
	f.StringVar(&opts.accountType, "account", "", "account type (demo|real)")
	f.StringVar(&opts.direction, "direction", "", "direction (long|short)")
	f.StringVar(&opts.status, "status", "", "status (open|closed)")
	f.StringVar(&opts.quantity, "quantity", "", "position size")
	f.StringVar(&opts.entryPrice, "entry-price", "", "entry price")
	f.StringVar(&opts.exitPrice, "exit-price", "", "exit price")
	f.StringVar(&opts.stopLoss, "stop-loss", "", "stop loss")
	f.StringVar(&opts.takeProfit, "take-profit", "", "take profit")
	f.StringVar(&opts.pnl, "pnl", "", "gross profit or loss")
	f.StringVar(&opts.netPnL, "net-pnl", "", "net profit or loss")
	f.StringVar(&opts.commission, "commission", "", "commission paid")
	f.StringVar(&opts.entryDate, "entry-date", "", "entry date (YYYY-MM-DD)")
	f.StringVar(&opts.entryTime, "entry-time", "", "entry time (HH:MM)")
	f.StringVar(&opts.exitDate, "exit-date", "", "exit date (YYYY-MM-DD)")
	f.StringVar(&opts.exitTime, "exit-time", "", "exit time (HH:MM)")
	f.StringVar(&opts.notes, "notes", "", "free-form notes")
	f.StringSliceVar(&opts.tags, "tag", nil, "tag, may be repeated")
	f.StringVar(&opts.raw, "json", "", "full record as JSON, other field flags are ignored")

	return cmd
}

func (o *tradeOptions) payload() ([]byte, error) {
	if o.raw != "" {
		return []byte(o.raw), nil
	}

	t := &records.Trade{
		StrategyID:  o.strategyID,
		Symbol:      o.symbol,
		AccountType: records.AccountType(o.accountType),
		Direction:   records.Direction(o.direction),
		Status:      records.TradeStatus(o.status),
		EntryDate:   o.entryDate,
		EntryTime:   o.entryTime,
		ExitDate:    o.exitDate,
		ExitTime:    o.exitTime,
		Notes:       o.notes,
		Tags:        o.tags,
	}

	var err error
	if t.Quantity, err = parseDecimal("quantity", o.quantity); err != nil {
		return nil, err
	}
	if t.EntryPrice, err = parseDecimal("entry-price", o.entryPrice); err != nil {
		return nil, err
	}
	nulls := []struct {
		name string
		src  string
		dst  *decimal.NullDecimal
	}{
		{"exit-price", o.exitPrice, &t.ExitPrice},
		{"stop-loss", o.stopLoss, &t.StopLoss},
		{"take-profit", o.takeProfit, &t.TakeProfit},
		{"pnl", o.pnl, &t.PnL},
		{"net-pnl", o.netPnL, &t.NetPnL},
		{"commission", o.commission, &t.Commission},
	}
	for _, n := range nulls {
		if n.src == "" {
			continue
		}
		d, err := parseDecimal(n.name, n.src)
		if err != nil {
			return nil, err
		}
		*n.dst = decimal.NewNullDecimal(d)
	}

	return json.Marshal(t)
}

type strategyOptions struct {
	name        string
	description string
	category    string
	rules       string
	defaultRisk string
	raw         string
}

func newAddStrategyCommand(s *session) *cobra.Command {
	opts := &strategyOptions{}

	cmd := &cobra.Command{
		Use:   "add-strategy",
		Short: "Record a strategy",
		Long: `Record a strategy locally and queue it for the server.

Example:
  tradesync add-strategy --name Breakout --category momentum --default-risk 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload := []byte(opts.raw)
			if opts.raw == "" {
				st := &records.Strategy{
					Name:        opts.name,
					Description: opts.description,
					Category:    opts.category,
					Rules:       opts.rules,
				}
				var err error
				if st.DefaultRisk, err = parseDecimal("default-risk", opts.defaultRisk); err != nil {
					return err
				}
				if payload, err = json.Marshal(st); err != nil {
					return err
				}
			}
			return s.add(cmd, records.TypeStrategy, payload)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "strategy name")
	f.StringVar(&opts.description, "description", "", "description")
	f.StringVar(&opts.category, "category", "", "category")
	f.StringVar(&opts.rules, "rules", "", "entry and exit rules")
	f.StringVar(&opts.defaultRisk, "default-risk", "", "default risk per trade")
	f.StringVar(&opts.raw, "json", "", "full record as JSON, other field flags are ignored")

	return cmd
}

// add assigns an id when the payload has none, so that it can be printed,
// and queues the record.
func (s *session) add(cmd *cobra.Command, rt records.RecordType, payload []byte) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	var id string
	if raw, ok := fields["id"]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	if id == "" {
		id = uuid.NewString()
		fields["id"], _ = json.Marshal(id)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if _, err := s.app.records.Enqueue(cmd.Context(), records.ActionAdd, rt, payload); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %s %s\n", rt, id)
	return nil
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", name, s, err)
	}
	return d, nil
}
