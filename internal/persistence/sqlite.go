package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
)

// SQLite wraps a database/sql handle on the sqlite3 driver.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite opens the ledger database file. sqlite serialises writers, so
// the pool holds a single connection.
func NewSQLite(ctx context.Context, cfg config.SQLiteConfig, logger *zap.Logger) (*SQLite, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", path+dsnOptions(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	logger.Info("opened sqlite ledger", zap.String("path", path))
	return &SQLite{DB: db}, nil
}

func dsnOptions(path string) string {
	if path == ":memory:" {
		return ""
	}
	return "?_journal_mode=WAL&_busy_timeout=5000"
}

// Close releases the handle.
func (s *SQLite) Close() {
	if s != nil && s.DB != nil {
		_ = s.DB.Close()
	}
}
