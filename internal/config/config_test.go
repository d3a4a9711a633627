package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "127.0.0.1:3000", cfg.Listen)
	assert.Equal(t, 128, cfg.Loop.Queue)
	assert.Equal(t, 256, cfg.Loop.Backlog)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PELUSA_LISTEN", "")
	t.Setenv("PELUSA_RELAY_URL", "")
	t.Setenv("PELUSA_DATA_DIR", "")
	t.Setenv("PELUSA_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("PELUSA_LISTEN", "")
	t.Setenv("PELUSA_RELAY_URL", "")
	t.Setenv("PELUSA_DATA_DIR", "")
	t.Setenv("PELUSA_LOG_LEVEL", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.Relay.URL = "ws://127.0.0.1:4000/ws"
	cfg.Relay.RefreshTimeout = 5 * time.Second
	cfg.Loop.Backlog = 8
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:4000/ws", loaded.Relay.URL)
	assert.Equal(t, 5*time.Second, loaded.Relay.RefreshTimeout)
	assert.Equal(t, 8, loaded.Loop.Backlog)
	assert.Equal(t, filepath.Join(dir, "data.db"), loaded.DBPath())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("PELUSA_LISTEN", "")
	t.Setenv("PELUSA_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 128, cfg.Loop.Queue)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PELUSA_LISTEN", "0.0.0.0:9000")
	t.Setenv("PELUSA_RELAY_URL", "wss://relay.example/ws")
	t.Setenv("PELUSA_RELAY_HTTP", "http://relay.example:4000")
	t.Setenv("PELUSA_DATA_DIR", t.TempDir())
	t.Setenv("PELUSA_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "wss://relay.example/ws", cfg.Relay.URL)
	assert.Equal(t, "http://relay.example:4000", cfg.Relay.HTTP)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Relay.URL = "http://wrong"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Loop.Queue = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Listen = ""
	assert.Error(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}
