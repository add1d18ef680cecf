package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_BACKEND", "")

	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.StoreBackend, "no DATABASE_URL means in-memory store")
	assert.Equal(t, 5*time.Minute, cfg.HeartbeatFreshness)
	assert.False(t, cfg.IdentitySkip)
}

func TestLoadPostgresWhenDatabaseURLSet(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/sonic?sslmode=disable")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.StoreBackend)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("DATABASE_URL", "postgres://ignored")
	t.Setenv("HEARTBEAT_FRESHNESS", "3m")
	t.Setenv("IDENTITY_SKIP", "true")
	t.Setenv("RATE_LIMIT_PER_MIN", "42")

	cfg := Load()
	assert.Equal(t, "memory", cfg.StoreBackend, "explicit backend wins over DATABASE_URL presence")
	assert.Equal(t, 3*time.Minute, cfg.HeartbeatFreshness)
	assert.True(t, cfg.IdentitySkip)
	assert.Equal(t, 42, cfg.RateLimitPerMin)
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("HEARTBEAT_FRESHNESS", "not-a-duration")
	t.Setenv("RATE_LIMIT_PER_MIN", "many")

	cfg := Load()
	assert.Equal(t, 5*time.Minute, cfg.HeartbeatFreshness)
	assert.Equal(t, 300, cfg.RateLimitPerMin)
}
