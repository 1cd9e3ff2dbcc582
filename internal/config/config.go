// Package config loads appguard settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
// Sections are embedded so every key is a flat APPGUARD_<TAG>.
type Config struct {
	EnforcementConfig
	DaemonConfig
	PathConfig
	LogConfig
}

// EnforcementConfig tunes the enforcement loop.
type EnforcementConfig struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	QueryTimeout time.Duration `envconfig:"QUERY_TIMEOUT" default:"1s"`
	RestartDelay time.Duration `envconfig:"RESTART_DELAY" default:"5s"`
}

// DaemonConfig tunes the daemon runner's housekeeping tickers.
type DaemonConfig struct {
	CapabilityCheckInterval time.Duration `envconfig:"CAPABILITY_CHECK_INTERVAL" default:"5s"`
	HeartbeatInterval       time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
	PolicySyncInterval      time.Duration `envconfig:"POLICY_SYNC_INTERVAL" default:"2s"`
}

// PathConfig overrides the exec-mode derived locations. Empty means default.
type PathConfig struct {
	DataDir string `envconfig:"DATA_DIR"`
	LogDir  string `envconfig:"LOG_DIR" default:"/var/tmp"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Prefix is the environment variable prefix, e.g. APPGUARD_POLL_INTERVAL.
const Prefix = "APPGUARD"

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the loop cannot run with.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.QueryTimeout <= 0 || c.QueryTimeout > c.PollInterval {
		return fmt.Errorf("query timeout must be in (0, poll interval], got %s", c.QueryTimeout)
	}
	if c.RestartDelay < 0 {
		return fmt.Errorf("restart delay must not be negative, got %s", c.RestartDelay)
	}
	return nil
}
