// Package config provides configuration management for wormmap.
//
// Config file locations (priority order):
//  1. $WORMMAP_CONFIG
//  2. ./wormmap.yaml
//  3. ~/.config/wormmap/config.yaml
//  4. /etc/wormmap/config.yaml
//
// A missing config file is not an error; defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Island   IslandConfig   `yaml:"island"`
	Poll     PollConfig     `yaml:"poll"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
}

// IslandConfig locates the island backend.
type IslandConfig struct {
	URL       string   `yaml:"url"`
	AuthToken string   `yaml:"auth_token"`
	Timeout   Duration `yaml:"timeout"`
}

// PollConfig tunes the poll scheduler.
type PollConfig struct {
	Interval Duration `yaml:"interval"`
}

// ServerConfig tunes the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig locates the snapshot/position store.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	SnapshotsKept int    `yaml:"snapshots_kept"`
}

// Duration wraps time.Duration for YAML ("1s", "500ms").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the wrapped value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load finds and loads the config file, or returns defaults if none
// found. The second return is the path that was loaded, empty for
// defaults.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	cfg, err := LoadFromPath(path)
	return cfg, path, err
}

// LoadFromPath loads config from a specific path.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// FindConfigPath returns the first existing config file on the search
// path, or empty when none exists.
func FindConfigPath() string {
	candidates := []string{os.Getenv("WORMMAP_CONFIG"), "./wormmap.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "wormmap", "config.yaml"))
	}
	candidates = append(candidates, "/etc/wormmap/config.yaml")

	for _, path := range candidates {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// DefaultConfig returns sensible defaults for a new installation.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Island.URL == "" {
		c.Island.URL = "https://localhost:5000"
	}
	if c.Island.Timeout <= 0 {
		c.Island.Timeout = Duration(10 * time.Second)
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = Duration(time.Second)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./wormmap.db"
	}
	if c.Database.SnapshotsKept <= 0 {
		c.Database.SnapshotsKept = 100
	}
}
