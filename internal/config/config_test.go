package config

import (
	"os"
	"path/filepath"
	"testing"

	"sendlog/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Minimal(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "/var/lib/sendlog/sendlog.db"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/sendlog/sendlog.db", cfg.Database.Path)
	assert.Equal(t, constants.DefaultEntryLifetimeHours, cfg.EntryLifetimeHours)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.CleanupSchedulerIntervalHours, cfg.Server.CleanupIntervalHours)
	assert.Equal(t, constants.DefaultDatabaseRetryAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, constants.DefaultBackoffInitialMs, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, constants.DefaultMaxBackoffMs, cfg.Retry.MaxBackoffMs)
	assert.False(t, cfg.ResendKillSwitch)
}

func TestLoadConfig_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"path": "/tmp/test.db"},
		"entryLifetimeHours": 72,
		"resendKillSwitch": true,
		"server": {"port": 9090, "cleanupIntervalHours": 6}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 72, cfg.EntryLifetimeHours)
	assert.True(t, cfg.ResendKillSwitch)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 6, cfg.Server.CleanupIntervalHours)
}

func TestLoadConfig_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `{"server": {"port": 9090}}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfig_NegativeLifetime(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "/tmp/test.db"}, "entryLifetimeHours": -1}`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadConfig_TraversalPathRejected(t *testing.T) {
	_, err := LoadConfig("../../etc/passwd")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config path")
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "/tmp/from-file.db"}}`)

	t.Setenv("SENDLOG_DB_PATH", "/tmp/from-env.db")
	t.Setenv("SENDLOG_DELIVERY_STATUS_URL", "http://localhost:9999")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
	assert.Equal(t, "http://localhost:9999", cfg.DeliveryStatusURL)
}
