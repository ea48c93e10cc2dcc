package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ops-ticket-bot/internal/auth"
	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
)

// TokenCmd mints an admin API token.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roleStr, _ := cmd.Flags().GetString("role")
			role := auth.Role(roleStr)
			if !role.Valid() {
				return fmt.Errorf("%w: %q", auth.ErrUnknownRole, roleStr)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, exp, err := service.NewAuthService(*cfg).IssueToken(subject, role)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			fmt.Fprintf(cmd.ErrOrStderr(), "role %s, expires %s\n", role, exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().String("subject", "operator", "Token subject")
	cmd.Flags().String("role", string(auth.RoleViewer), "Token role (viewer or admin)")
	return cmd
}
