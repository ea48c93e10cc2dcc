package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/repository"
)

// RunMigrations creates the ledger tables and their key indexes.
func RunMigrations(ctx context.Context, repo repository.SheetRepository, logger *zap.Logger) error {
	if repo == nil {
		logger.Warn("no ledger repository available; skipping migrations")
		return nil
	}
	names := repository.SheetNames()
	for _, name := range names {
		logger.Info("ensuring ledger table", zap.String("sheet", name))
	}
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("migrations applied", zap.Int("count", len(names)))
	return nil
}
