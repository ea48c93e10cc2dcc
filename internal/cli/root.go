package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/observability"
)

// RootCmd assembles the ticketbot command tree.
func RootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "ticketbot",
		Short:   "Slack ops ticket bot",
		Version: version,
		Long: `ticketbot runs the ops ticket bot: slash command intake, the ticket
lifecycle, unclaimed-ticket reminders and the admin API.`,
		SilenceUsage: true,
	}
	root.AddCommand(ServeCmd())
	root.AddCommand(MigrateCmd())
	root.AddCommand(TokenCmd())
	root.AddCommand(TicketsCmd())
	root.AddCommand(RemindCmd())
	root.AddCommand(HashPasswordCmd())
	return root
}

// loadEnv reads configuration and builds the logger.
func loadEnv() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
