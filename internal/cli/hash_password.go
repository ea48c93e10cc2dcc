package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/service"
)

// HashPasswordCmd prints a bcrypt hash for ADMIN_PASSWORD_HASH.
func HashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Hash an admin password",
		Long:  "Hash an admin password for ADMIN_PASSWORD_HASH. Reads the password from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			hash, err := service.NewAuthService(*cfg).HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
