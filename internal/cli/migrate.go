package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ops-ticket-bot/internal/app"
)

// MigrateCmd creates the ledger tables.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			storage, err := app.OpenStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()
			if err := storage.Migrate(cmd.Context(), logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger tables ready (%s).\n", cfg.Ledger.Backend)
			return nil
		},
	}
}
