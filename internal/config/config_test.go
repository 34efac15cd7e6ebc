package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendBolt, cfg.StoreBackend)
	assert.Equal(t, 30*time.Second, cfg.SaveInterval)
	assert.Equal(t, 10.0, cfg.HitTolerancePx)
	assert.Equal(t, 8.0, cfg.MinClickablePx)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SAVE_INTERVAL", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HIT_TOLERANCE_PX", "4.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 5*time.Second, cfg.SaveInterval)
	assert.Equal(t, 4.5, cfg.HitTolerancePx)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"backend", "STORE_BACKEND", "redis"},
		{"interval", "SAVE_INTERVAL", "0s"},
		{"level", "LOG_LEVEL", "loud"},
		{"port", "PORT", "http"},
		{"tolerance", "MIN_CLICKABLE_PX", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
