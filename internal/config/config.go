// Package config loads the shell configuration.
//
// Lookup order: the --config flag, then ~/.pelusa-im/config.yaml, then
// built-in defaults. PELUSA_* environment variables override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`

	Relay   RelayConfig   `yaml:"relay"`
	Loop    LoopConfig    `yaml:"loop"`
	Logging LoggingConfig `yaml:"logging"`
}

type RelayConfig struct {
	URL            string        `yaml:"url"`  // websocket, empty disables the relay
	HTTP           string        `yaml:"http"` // contact list base URL
	SendBuffer     int           `yaml:"send_buffer"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
}

type LoopConfig struct {
	Queue   int `yaml:"queue"`
	Backlog int `yaml:"backlog"` // events held until the self account is known
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pelusa-im"
	}
	return filepath.Join(home, ".pelusa-im")
}

func DefaultConfig() *Config {
	return &Config{
		Listen:  "127.0.0.1:3000",
		DataDir: DefaultDataDir(),
		Relay: RelayConfig{
			SendBuffer:     64,
			RefreshTimeout: 30 * time.Second,
		},
		Loop: LoopConfig{
			Queue:   128,
			Backlog: 256,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DBPath is the contact cache location.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "data.db") }

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	cfg.DataDir = expandHome(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PELUSA_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("PELUSA_RELAY_URL"); v != "" {
		c.Relay.URL = v
	}
	if v := os.Getenv("PELUSA_RELAY_HTTP"); v != "" {
		c.Relay.HTTP = v
	}
	if v := os.Getenv("PELUSA_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PELUSA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Loop.Queue < 0 || c.Loop.Backlog < 0 || c.Relay.SendBuffer < 0 {
		return errors.New("queue sizes must not be negative")
	}
	if c.Relay.URL != "" && !strings.HasPrefix(c.Relay.URL, "ws://") && !strings.HasPrefix(c.Relay.URL, "wss://") {
		return fmt.Errorf("relay.url must be a ws:// or wss:// URL, got %q", c.Relay.URL)
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
