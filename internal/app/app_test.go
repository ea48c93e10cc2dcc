package app

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/correlation"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
)

func testConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "ops-ticket-bot", Version: "test", Timezone: "Asia/Jakarta"},
		Auth:     config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 5},
		Registry: config.RegistryConfig{Backend: BackendMemory},
		Ledger:   config.LedgerConfig{Backend: BackendSQLite},
		Routing:  config.DefaultRouting(),
	}
}

func TestOpenStorageMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()
	storage, err := OpenStorage(ctx, testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer storage.Close()

	assert.IsType(t, &registry.MemoryStore{}, storage.Registry)
	assert.NotNil(t, storage.Evictor)
	require.NoError(t, storage.Migrate(ctx, zap.NewNop()))
	for name, p := range storage.Pingers() {
		assert.NoError(t, p.Ping(ctx), name)
	}
}

func TestOpenStorageRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig()
	cfg.Registry.Backend = "etcd"
	_, err := OpenStorage(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "etcd")

	cfg = testConfig()
	cfg.Ledger.Backend = "sheets"
	_, err = OpenStorage(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "sheets")

	cfg = testConfig()
	cfg.Ledger.Backend = BackendPostgres
	_, err = OpenStorage(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "POSTGRES_DSN")
}

func TestBuildServesHealthWithoutSlack(t *testing.T) {
	cfg := testConfig()
	cfg.Ledger.Backend = BackendMemory
	storage, err := OpenStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer storage.Close()

	rt, err := Build(cfg, zap.NewNop(), storage, nil)
	require.NoError(t, err)
	assert.Nil(t, rt.bot)

	resp, err := rt.HTTP().Test(httptest.NewRequest("GET", "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = rt.HTTP().Test(httptest.NewRequest("GET", "/admin/tickets", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	escalated, err := rt.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, escalated)
}

func TestBuildRejectsUnusableDelimiter(t *testing.T) {
	cfg := testConfig()
	cfg.Ledger.Backend = BackendMemory
	cfg.Registry.TokenDelimiter = "5"
	storage, err := OpenStorage(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer storage.Close()

	_, err = Build(cfg, zap.NewNop(), storage, nil)
	assert.ErrorIs(t, err, correlation.ErrBadDelimiter)
}
