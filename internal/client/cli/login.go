package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "login [token]",
		Short: "Verify and store a bearer token",
		Long: `Verify a bearer token against the server and store it in the local
database for later commands. Without an argument the token is read from the
terminal without echo.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				var err error
				if token, err = GetSecret(cmd.InOrStdin(), "Enter token", cmd.OutOrStdout()); err != nil {
					return err
				}
			}

			if err := s.app.auth.Login(cmd.Context(), token); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			s.app.loggedIn = true
			fmt.Fprintln(cmd.OutOrStdout(), "Login successful")
			return nil
		},
	}
}

func newLogoutCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.app.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			s.app.loggedIn = false
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
