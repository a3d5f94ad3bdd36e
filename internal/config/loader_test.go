package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config lookup at an empty directory so a developer's
// own config file cannot leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("GOTUNE_CONFIG", "")
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	data := t.TempDir()
	t.Setenv("GOTUNE_DATA_DIR", data)

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, data, cfg.DataDir)
	assert.Equal(t, filepath.Join(data, "registry.json"), cfg.RegistryPath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "firectl", cfg.Remote.Binary)
	assert.Equal(t, 60*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 5, cfg.Poll.MaxRetries)
	assert.Equal(t, time.Minute, cfg.Poll.RetryMax)
	assert.Equal(t, 3, cfg.Dataset.MinExamples)
	assert.Equal(t, 4096, cfg.Dataset.MaxContentLength)

	assert.Same(t, cfg, GetConfig())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("GOTUNE_DATA_DIR", t.TempDir())
	t.Setenv("GOTUNE_SERVER_PORT", "9090")
	t.Setenv("GOTUNE_LOG_LEVEL", "debug")
	t.Setenv("GOTUNE_POLL_INTERVAL", "5s")
	t.Setenv("GOTUNE_FIRECTL", "/opt/bin/firectl")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "/opt/bin/firectl", cfg.Remote.Binary)
}

func TestLoad_OverridesBeatEnv(t *testing.T) {
	isolate(t)
	t.Setenv("GOTUNE_DATA_DIR", t.TempDir())
	t.Setenv("GOTUNE_SERVER_PORT", "9090")

	cfg, err := Load(context.Background(), map[string]any{
		"server": map[string]any{"port": 7070},
		"poll":   map[string]any{"max_retries": -1},
	})
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, -1, cfg.Poll.MaxRetries)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	data := t.TempDir()
	path := filepath.Join(t.TempDir(), "gotune.yaml")
	body := "data_dir: " + data + "\n" +
		"dataset:\n  min_examples: 10\n  shard_size: 500\n" +
		"remote:\n  account_id: acct-1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, data, cfg.DataDir)
	assert.Equal(t, 10, cfg.Dataset.MinExamples)
	assert.Equal(t, 500, cfg.Dataset.ShardSize)
	assert.Equal(t, "acct-1", cfg.Remote.AccountID)
}

func TestLoadFile_Missing(t *testing.T) {
	isolate(t)
	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("GOTUNE_DATA_DIR", t.TempDir())

	_, err := Load(context.Background(), map[string]any{"server.port": 70000})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
