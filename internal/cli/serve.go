package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/app"
	"github.com/spec-kit/ops-ticket-bot/internal/slackbot"
)

// ServeCmd runs the bot, the reminder sweeper and the admin API.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack bot, reminder sweeper and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := slackbot.NewClient(cfg.Slack)
			if err != nil {
				return err
			}
			storage, err := app.OpenStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			if cfg.Ledger.Backend != app.BackendPostgres || cfg.Postgres.RunMigrations {
				if err := storage.Migrate(ctx, logger); err != nil {
					return err
				}
			}

			logger.Info("starting ticketbot",
				zap.String("env", cfg.App.Env),
				zap.String("version", cfg.App.Version),
				zap.String("registry", cfg.Registry.Backend),
				zap.String("ledger", cfg.Ledger.Backend))
			rt, err := app.Build(cfg, logger, storage, client)
			if err != nil {
				return err
			}
			err = rt.Run(ctx)
			logger.Info("ticketbot stopped")
			return err
		},
	}
}
