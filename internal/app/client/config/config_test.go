package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("DEVICE_NAME", "praxis-laptop")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "localhost:8080", cfg.ServerAddress)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
	assert.Equal(t, filepath.Join(dir, "sync.db"), cfg.DataPath)
	assert.Equal(t, filepath.Join(dir, "params"), cfg.ParamsDir)
	assert.Equal(t, filepath.Join(dir, "attachments"), cfg.AttachmentsDir)
	assert.Equal(t, filepath.Join(dir, "token"), cfg.TokenPath)
	assert.Equal(t, 5*time.Minute, cfg.PullInterval)
	assert.Equal(t, 30*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 2*time.Second, cfg.PushDebounce)
	assert.Equal(t, 10*time.Second, cfg.RetryBackoff)
	assert.Equal(t, 5*time.Minute, cfg.MaxRetryBackoff)
	assert.Equal(t, 200, cfg.PullPageSize)
	assert.Equal(t, 50, cfg.ConflictLogSize)
	assert.Equal(t, "praxis-laptop", cfg.DeviceName)
	assert.Empty(t, cfg.MetricsAddress)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("APP_ENV", EnvProd)
	t.Setenv("SERVER_ADDRESS", "sync.example.org")
	t.Setenv("ENABLE_TLS", "true")
	t.Setenv("PUSH_DEBOUNCE_MS", "500")
	t.Setenv("DATA_PATH", "/var/lib/praxsync/state.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "https://sync.example.org", cfg.BaseURL())
	assert.Equal(t, 500*time.Millisecond, cfg.PushDebounce)
	assert.Equal(t, "/var/lib/praxsync/state.db", cfg.DataPath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "zero pull interval", key: "PULL_INTERVAL_SECONDS", val: "0"},
		{name: "zero probe interval", key: "PROBE_INTERVAL_SECONDS", val: "0"},
		{name: "negative debounce", key: "PUSH_DEBOUNCE_MS", val: "-1"},
		{name: "zero page size", key: "PULL_PAGE_SIZE", val: "0"},
		{name: "zero retry backoff", key: "PUSH_RETRY_SECONDS", val: "0"},
		{name: "retry cap below base", key: "PUSH_RETRY_MAX_SECONDS", val: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_DIR", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
			assert.Panics(t, func() { MustLoad() })
		})
	}
}
