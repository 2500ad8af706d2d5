package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/tradesync/internal/records"
	"github.com/spf13/cobra"
)

func newSyncCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.app.requireLogin(); err != nil {
				return err
			}
			res, err := s.app.engine.RunCycle(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintln(out, "sync skipped: another cycle is running or the server is offline")
				return nil
			}
			fmt.Fprintf(out, "synced: sent %d, applied %d, received %d\n", res.Sent, res.Applied, res.Received)
			return nil
		},
	}
}

func newStatusCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and local counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := s.app.engine.State(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			fmt.Fprintf(w, "server:\t%s\n", s.app.config.ServerURL)
			fmt.Fprintf(w, "device:\t%s\n", st.DeviceID)
			fmt.Fprintf(w, "mode:\t%s\n", s.app.config.Mode)
			fmt.Fprintf(w, "logged in:\t%t\n", s.app.loggedIn)
			fmt.Fprintf(w, "status:\t%s\n", st.Status)
			fmt.Fprintf(w, "pending:\t%d\n", st.Pending)
			if st.LastSyncTime.IsZero() {
				fmt.Fprintf(w, "last sync:\tnever\n")
			} else {
				fmt.Fprintf(w, "last sync:\t%s\n", st.LastSyncTime.Local().Format(time.DateTime))
			}
			for _, c := range records.AllCollections {
				live, dirty, err := s.app.db.Entries.Count(ctx, c)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s:\t%d (%d unsynced)\n", c, live, dirty)
			}
			return w.Flush()
		},
	}
}

func newLogCommand(s *session) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent sync events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := s.app.db.SyncLog.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no sync events")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-5s  %s", e.CreatedAt.Local().Format(time.DateTime), e.Level, e.Message)
				if e.Details != "" {
					line += ": " + e.Details
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of events to show")
	return cmd
}

func newDaemonCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Sync in the foreground until interrupted",
		Long: `Run the sync engine in the foreground. A cycle runs at start, every
--sync-interval, and whenever the server becomes reachable again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.app.requireLogin(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s.app.logger.Info(ctx, "sync daemon started", "device", s.app.deviceID, "interval", s.app.config.SyncInterval)
			err := s.app.engine.Run(ctx)
			s.app.logger.Info(context.WithoutCancel(ctx), "sync daemon stopped")
			return err
		},
	}
}
