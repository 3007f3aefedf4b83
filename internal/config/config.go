// Package config loads and validates the daemon configuration from a
// YAML file, with sensible defaults for every field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	General GeneralConfig `yaml:"general"`
	Sync    SyncConfig    `yaml:"sync"`
	Feed    FeedConfig    `yaml:"feed"`
	Sources SourcesConfig `yaml:"sources"`
	API     APIConfig     `yaml:"api"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// GeneralConfig holds daemon-wide settings.
type GeneralConfig struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	DataDir  string `yaml:"data_dir"`
}

// SyncConfig controls the periodic bulk refresh.
type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// FeedConfig controls the realtime feed connection.
type FeedConfig struct {
	Mode                 string        `yaml:"mode"` // "sim" or "websocket"
	URL                  string        `yaml:"url"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	BaseReconnectDelay   time.Duration `yaml:"base_reconnect_delay"`
	FailureRate          float64       `yaml:"failure_rate"` // sim mode only
}

// SourcesConfig selects and configures bulk message sources.
type SourcesConfig struct {
	Sim   SimSourceConfig   `yaml:"sim"`
	Slack SlackSourceConfig `yaml:"slack"`
}

// SimSourceConfig configures the simulated source.
type SimSourceConfig struct {
	MinBatch int    `yaml:"min_batch"`
	MaxBatch int    `yaml:"max_batch"`
	Seed     uint64 `yaml:"seed"` // 0 for time-based
}

// SlackSourceConfig configures the Slack channel source.
type SlackSourceConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig configures urgent-message notifications.
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

// Defaults returns a configuration that runs out of the box: simulated
// source and feed, data under ~/.unibox.
func Defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			DataDir:  filepath.Join(home, ".unibox"),
		},
		Sync: SyncConfig{
			Interval: 60 * time.Second,
		},
		Feed: FeedConfig{
			Mode:                 "sim",
			MaxReconnectAttempts: 5,
			BaseReconnectDelay:   time.Second,
			FailureRate:          0.1,
		},
		Sources: SourcesConfig{
			Sim: SimSourceConfig{MinBatch: 10, MaxBatch: 50},
		},
		API: APIConfig{
			Port: 8320,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".unibox", "config.yaml")
}

// Load reads and validates the config file at path. A missing file yields
// defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	switch c.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.General.LogLevel)
	}
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("sync interval %s too short, minimum 1s", c.Sync.Interval)
	}
	switch c.Feed.Mode {
	case "sim":
	case "websocket":
		if c.Feed.URL == "" {
			return fmt.Errorf("feed mode websocket requires a url")
		}
	default:
		return fmt.Errorf("unknown feed mode %q", c.Feed.Mode)
	}
	if c.Feed.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("max_reconnect_attempts must be positive")
	}
	if c.Feed.FailureRate < 0 || c.Feed.FailureRate > 1 {
		return fmt.Errorf("failure_rate must be in [0,1]")
	}
	if c.Sources.Sim.MinBatch <= 0 || c.Sources.Sim.MaxBatch < c.Sources.Sim.MinBatch {
		return fmt.Errorf("sim batch bounds invalid: min=%d max=%d", c.Sources.Sim.MinBatch, c.Sources.Sim.MaxBatch)
	}
	if c.Sources.Slack.Enabled && (c.Sources.Slack.BotToken == "" || c.Sources.Slack.ChannelID == "") {
		return fmt.Errorf("slack source requires bot_token and channel_id")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api port %d out of range", c.API.Port)
	}
	if c.Notify.Telegram.Enabled && c.Notify.Telegram.Token == "" {
		return fmt.Errorf("telegram notifier requires a token")
	}
	return nil
}
