package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "partner-secret")
	t.Setenv("JWT_SECRET", "jwt-secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.DB.ConnMaxLifetime)
	assert.Equal(t, int32(2), cfg.Allocation.Precision)
	assert.Equal(t, time.Hour, cfg.Allocation.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.Allocation.RuleTimeout)
	assert.Equal(t, 4, cfg.Allocation.SweepConcurrency)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOCATION_SWEEP_INTERVAL", "0")
	t.Setenv("ALLOCATION_PRECISION", "0")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, time.Duration(0), cfg.Allocation.SweepInterval)
	assert.Equal(t, int32(0), cfg.Allocation.Precision)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad port", "DB_PORT", "five"},
		{"bad duration", "ALLOCATION_RULE_TIMEOUT", "soon"},
		{"negative duration", "ALLOCATION_SWEEP_INTERVAL", "-1m"},
		{"precision out of range", "ALLOCATION_PRECISION", "9"},
		{"zero concurrency", "ALLOCATION_SWEEP_CONCURRENCY", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.val)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingSecrets(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "")
	t.Setenv("JWT_SECRET", "jwt-secret")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "WEBHOOK_SECRET")
}
