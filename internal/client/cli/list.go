package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/spf13/cobra"
)

func newListCommand(s *session) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <trades|strategies>",
		Short: "List records, newest first",
		Long: `List the stored records of one type, most recently changed first.
Records with changes not yet acknowledged by the server are marked with *.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := parseType(args[0])
			if err != nil {
				return err
			}
			recs, err := s.app.records.List(cmd.Context(), rt)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "no records")
				return nil
			}
			if rt == records.TypeStrategy {
				return printStrategies(out, recs)
			}
			return printTrades(out, recs)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func newShowCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "show <trade|strategy> <id>",
		Short: "Print one record as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := parseType(args[0])
			if err != nil {
				return err
			}
			rec, err := s.app.records.Get(cmd.Context(), rt, args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func printTrades(out io.Writer, recs []records.Record) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tDIRECTION\tSTATUS\tQTY\tPNL\tUPDATED")
	for _, r := range recs {
		t, ok := r.(*records.Trade)
		if !ok {
			continue
		}
		pnl := "-"
		if t.PnL.Valid {
			pnl = t.PnL.Decimal.String()
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, dirtyMark(t.IsDirty), t.Symbol, t.Direction, t.Status, t.Quantity, pnl, t.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func printStrategies(out io.Writer, recs []records.Record) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tTRADES\tUPDATED")
	for _, r := range recs {
		st, ok := r.(*records.Strategy)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%d\t%s\n",
			st.ID, dirtyMark(st.IsDirty), st.Name, st.Category, st.TotalTrades, st.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func dirtyMark(dirty bool) string {
	if dirty {
		return "*"
	}
	return ""
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
