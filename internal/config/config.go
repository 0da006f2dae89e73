// Package config loads the optional kongman configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	"kongman/internal/paths"
)

// FileName is the config file looked up in the config directory.
const FileName = "config.yaml"

// Config is the on-disk configuration. Zero values mean "not set".
type Config struct {
	// DBPath overrides the database location. ":memory:" selects the
	// in-memory backend.
	DBPath string `yaml:"db_path"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	ProbeWorkers    int           `yaml:"probe_workers"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

// DefaultPath returns ~/.config/kongman/config.yaml.
func DefaultPath() (string, error) {
	dir, err := paths.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the config file at path. An empty path means the default
// location, where a missing file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects negative values.
func (c *Config) Validate() error {
	switch {
	case c.RequestTimeout < 0:
		return fmt.Errorf("request_timeout must not be negative")
	case c.ProbeTimeout < 0:
		return fmt.Errorf("probe_timeout must not be negative")
	case c.ProbeWorkers < 0:
		return fmt.Errorf("probe_workers must not be negative")
	case c.MonitorInterval < 0:
		return fmt.Errorf("monitor_interval must not be negative")
	}
	return nil
}
