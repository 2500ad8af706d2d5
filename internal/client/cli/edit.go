package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/spf13/cobra"
)

func newUpdateCommand(s *session) *cobra.Command {
	var patch string

	cmd := &cobra.Command{
		Use:   "update <trade|strategy> <id>",
		Short: "Change fields of a record",
		Long: `Change fields of a stored record. The JSON given with --json is merged
into the record field by field; fields it does not mention keep their value.

Example:
  tradesync update trade 550e8400-e29b-41d4-a716-446655440001 --json '{"status":"closed","exitPrice":1.092}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := parseType(args[0])
			if err != nil {
				return err
			}
			if patch == "" {
				return fmt.Errorf("nothing to update: pass --json")
			}

			ctx := cmd.Context()
			current, err := s.app.records.Get(ctx, rt, args[1])
			if err != nil {
				return err
			}
			payload, err := mergeJSON(current, []byte(patch))
			if err != nil {
				return err
			}
			if _, err := s.app.records.Enqueue(ctx, records.ActionUpdate, rt, payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s %s\n", rt, args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&patch, "json", "", "fields to change, as a JSON object")
	return cmd
}

func newDeleteCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trade|strategy> <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := parseType(args[0])
			if err != nil {
				return err
			}
			payload, _ := json.Marshal(map[string]string{"id": args[1]})
			if _, err := s.app.records.Enqueue(cmd.Context(), records.ActionDelete, rt, payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", rt, args[1])
			return nil
		},
	}
}

// mergeJSON overlays the top-level fields of patch onto rec. The id and
// client-side bookkeeping fields cannot be patched.
func mergeJSON(rec records.Record, patch []byte) ([]byte, error) {
	base, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}

	changes := map[string]json.RawMessage{}
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for k, v := range changes {
		switch k {
		case "id", "isDirty", "deleted":
			continue
		}
		fields[k] = v
	}
	delete(fields, "isDirty")

	return json.Marshal(fields)
}

// parseType accepts singular and plural record type names.
func parseType(s string) (records.RecordType, error) {
	switch strings.ToLower(s) {
	case "trade", "trades":
		return records.TypeTrade, nil
	case "strategy", "strategies":
		return records.TypeStrategy, nil
	default:
		return "", fmt.Errorf("unknown record type %q: must be trade or strategy", s)
	}
}
