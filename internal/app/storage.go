package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/persistence"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
	"github.com/spec-kit/ops-ticket-bot/internal/reminder"
	"github.com/spec-kit/ops-ticket-bot/internal/repository"
	"github.com/spec-kit/ops-ticket-bot/internal/worker"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Storage holds the registry, reminder queue and ledger backends.
type Storage struct {
	Registry registry.Store
	Actions  registry.ActionStore
	Queue    reminder.Queue
	Ledger   repository.SheetRepository
	// Evictor is set for backends without native expiry.
	Evictor worker.Evictor

	closers []func()
}

// OpenStorage connects the configured backends.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Storage, error) {
	s := &Storage{}
	if err := s.openRegistry(ctx, cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openLedger(ctx, cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) openRegistry(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	switch cfg.Registry.Backend {
	case BackendMemory, "":
		store := registry.NewMemoryStore(logger)
		s.Registry = store
		s.Evictor = store
		s.Actions = registry.NewMemoryActionStore()
		s.Queue = reminder.NewMemoryQueue(cfg.Registry.ReminderBound)
	case BackendRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, rdb.Close)
		s.Registry = registry.NewRedisStore(rdb.Client, cfg.Redis.Prefix, cfg.Registry.TicketTTL, logger)
		s.Actions = registry.NewRedisActionStore(rdb.Client, cfg.Redis.Prefix)
		s.Queue = reminder.NewRedisQueue(rdb.Client, cfg.Redis.Prefix)
	default:
		return fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
	logger.Info("registry ready", zap.String("backend", cfg.Registry.Backend))
	return nil
}

func (s *Storage) openLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	switch cfg.Ledger.Backend {
	case BackendPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pg.Close)
		s.Ledger = repository.NewPostgresSheetRepository(pg.Pool)
	case BackendSQLite, "":
		db, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, db.Close)
		s.Ledger = repository.NewSQLiteSheetRepository(db.DB)
	case BackendMemory:
		s.Ledger = repository.NewMemorySheetRepository()
	default:
		return fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
	logger.Info("ledger ready", zap.String("backend", cfg.Ledger.Backend))
	return nil
}

// Migrate creates the ledger tables.
func (s *Storage) Migrate(ctx context.Context, logger *zap.Logger) error {
	return persistence.RunMigrations(ctx, s.Ledger, logger)
}

// Pingers returns the readiness probes.
func (s *Storage) Pingers() map[string]handlers.Pinger {
	return map[string]handlers.Pinger{
		"registry": s.Registry,
		"ledger":   s.Ledger,
	}
}

// Close releases connections in reverse order of opening.
func (s *Storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
