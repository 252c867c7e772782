// Package config loads the worker pool settings from a YAML or JSON file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Workers         int           `yaml:"workers" json:"workers"`
	QueueCapacity   int           `yaml:"queue_capacity" json:"queue_capacity"`
	ShutdownTimeout string        `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	Drain           bool          `yaml:"drain" json:"drain"`
	Log             LogConfig     `yaml:"log" json:"log"`
	Metrics         MetricsConfig `yaml:"metrics" json:"metrics"`
	Faults          FaultsConfig  `yaml:"faults" json:"faults"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

type FaultsConfig struct {
	// DBPath is the sqlite file fault reports are archived in; empty disables the archive
	DBPath string `yaml:"db_path" json:"db_path"`

	// Retention drops archived reports older than this at startup; empty keeps everything
	Retention string `yaml:"retention" json:"retention"`
}

func Default() Config {
	return Config{
		Workers:         4,
		ShutdownTimeout: "30s",
		Drain:           true,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads path on top of Default. The format follows the file extension.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", ext)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}

	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue_capacity cannot be negative, got %d", ErrInvalidConfig, c.QueueCapacity)
	}

	if _, err := c.Timeout(); err != nil {
		return err
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	if _, err := c.Faults.RetentionPeriod(); err != nil {
		return err
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics.addr is required when metrics are enabled", ErrInvalidConfig)
	}

	return nil
}

// Timeout parses ShutdownTimeout. An empty value means no deadline.
func (c Config) Timeout() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid shutdown_timeout: %v", ErrInvalidConfig, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: shutdown_timeout cannot be negative", ErrInvalidConfig)
	}

	return d, nil
}

// RetentionPeriod parses Retention. Zero means reports are never pruned.
func (f FaultsConfig) RetentionPeriod() (time.Duration, error) {
	if f.Retention == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(f.Retention)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid faults.retention: %v", ErrInvalidConfig, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: faults.retention cannot be negative", ErrInvalidConfig)
	}

	return d, nil
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, l.Level)
	}
	return level, nil
}

// NewLogger builds the slog logger described by l.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
