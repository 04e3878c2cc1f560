package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Completion.TTL)
	assert.Equal(t, "@every 1m", cfg.Completion.ScanSchedule)
	assert.Equal(t, 5*time.Second, cfg.Redis.ProgressTTL)
	assert.Equal(t, "postgres://classtrack:pw@localhost:5432/classtrack?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("STORE_BACKEND", "BOLT")
	t.Setenv("BOLTDB_PATH", "/tmp/ct.db")
	t.Setenv("COMPLETION_TTL", "12h")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "9")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendBolt, cfg.Store.Backend)
	assert.Equal(t, "/tmp/ct.db", cfg.Store.BoltPath)
	assert.Equal(t, 12*time.Hour, cfg.Completion.TTL)
	assert.Equal(t, 9*time.Second, cfg.Context.RequestTimeout)
	assert.False(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", BackendPostgres)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestValidateHistoryLimit(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("STORE_BACKEND", BackendBolt)
	t.Setenv("HISTORY_LIMIT", "500")
	_, err := Load()
	assert.ErrorContains(t, err, "HISTORY_LIMIT")

	t.Setenv("HISTORY_LIMIT", "100")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Completion.HistoryLimit)
}
