package cli

import (
	"context"
	"io"
	"strings"

	"github.com/dmitrijs2005/tradesync/internal/client/config"
	"github.com/spf13/cobra"
)

// session is shared by a root command and, in the shell, by every command
// run from it.
type session struct {
	configFile string
	app        *App
	owned      bool
	inShell    bool
}

// Execute runs the command line args and releases the session afterwards.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	s := &session{}
	defer s.close()

	cmd := newRootCommand(s)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. The database it opens stays open
// until the process exits; Execute also closes it.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&session{})
}

func newRootCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tradesync",
		Short: "Offline-first trade journal client",
		Long: `tradesync keeps a local journal of trades and strategies and
synchronizes it with a tradesync server whenever the server is reachable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if s.app != nil || !needsApp(cmd) {
				return nil
			}
			return s.open(cmd)
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().StringVarP(&s.configFile, "config", "c", "", "config file (json or yaml)")

	cmd.AddCommand(newAddTradeCommand(s))
	cmd.AddCommand(newAddStrategyCommand(s))
	cmd.AddCommand(newUpdateCommand(s))
	cmd.AddCommand(newDeleteCommand(s))
	cmd.AddCommand(newListCommand(s))
	cmd.AddCommand(newShowCommand(s))
	cmd.AddCommand(newSyncCommand(s))
	cmd.AddCommand(newStatusCommand(s))
	cmd.AddCommand(newLogCommand(s))
	cmd.AddCommand(newLoginCommand(s))
	cmd.AddCommand(newLogoutCommand(s))
	cmd.AddCommand(newDaemonCommand(s))
	cmd.AddCommand(newShellCommand(s))

	return cmd
}

func (s *session) open(cmd *cobra.Command) error {
	cfg, err := config.Load(s.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	app, err := NewApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	s.app, s.owned = app, true
	return nil
}

func (s *session) close() {
	if s.owned && s.app != nil {
		_ = s.app.Close()
	}
	s.app, s.owned = nil, false
}

// needsApp is false for commands that never touch the session.
func needsApp(cmd *cobra.Command) bool {
	if cmd.Name() == "help" {
		return false
	}
	return !strings.Contains(cmd.CommandPath(), " completion")
}
