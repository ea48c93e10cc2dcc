package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/app"
	"github.com/spec-kit/ops-ticket-bot/internal/slackbot"
)

// RemindCmd fires due reminders once, outside the serve loop.
func RemindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Escalate unclaimed tickets whose reminder is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if cfg.Registry.Backend != app.BackendRedis {
				logger.Warn("registry is not shared; nothing to sweep outside serve",
					zap.String("backend", cfg.Registry.Backend))
			}
			client, err := slackbot.NewClient(cfg.Slack)
			if err != nil {
				return err
			}
			storage, err := app.OpenStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			rt, err := app.Build(cfg, logger, storage, client)
			if err != nil {
				return err
			}
			escalated, err := rt.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Escalated %d ticket(s).\n", escalated)
			return nil
		},
	}
}
