package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newShellCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt with background sync",
		Long: `Start an interactive prompt. Every client command can be typed without
the leading "tradesync"; arguments are split on whitespace. While logged in
the sync engine runs in the background, so edits are pushed shortly after
they are made.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.inShell {
				return errors.New("already in the shell")
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			s.inShell = true
			defer func() { s.inShell = false }()

			out := cmd.OutOrStdout()
			if s.app.loggedIn {
				done := make(chan struct{})
				go func() {
					defer close(done)
					_ = s.app.engine.Run(ctx)
				}()
				defer func() {
					cancel()
					<-done
				}()
			} else {
				fmt.Fprintln(out, "Not logged in, background sync is off (use 'login <token>')")
			}

			fmt.Fprintln(out, "Welcome to tradesync (type 'help' for commands, 'exit' to leave)")
			return runREPL(ctx, s, cmd.InOrStdin(), out, cmd.ErrOrStderr())
		},
	}
}

// runREPL reads commands line by line and runs each through a fresh
// command tree sharing the session. It returns on EOF or "exit"/"quit".
func runREPL(ctx context.Context, s *session, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "tradesync %s> ", s.app.prompt(ctx))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		}

		if err := runLine(ctx, s, parts, in, out, errOut); err != nil {
			fmt.Fprintln(errOut, "Error:", err)
		}
	}
}

func runLine(ctx context.Context, s *session, args []string, in io.Reader, out, errOut io.Writer) error {
	cmd := newRootCommand(s)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetHelpCommand(&cobra.Command{
		Use:   "help",
		Short: "List commands",
		Run: func(c *cobra.Command, _ []string) {
			root := c.Root()
			fmt.Fprintln(c.OutOrStdout(), "Available commands:")
			for _, sub := range root.Commands() {
				if sub.Hidden || sub.Name() == "shell" || sub.Name() == "completion" {
					continue
				}
				fmt.Fprintf(c.OutOrStdout(), "  %-14s %s\n", sub.Name(), sub.Short)
			}
			fmt.Fprintf(c.OutOrStdout(), "  %-14s %s\n", "exit", "leave the shell")
		},
	})
	return cmd.ExecuteContext(ctx)
}
