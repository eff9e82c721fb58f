// Package config loads sheetflow settings from a TOML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Environment variables that override file settings.
const (
	EnvDatabase     = "SHEETFLOW_DB"
	EnvLogLevel     = "SHEETFLOW_LOG_LEVEL"
	EnvLogFormat    = "SHEETFLOW_LOG_FORMAT"
	EnvWorkers      = "SHEETFLOW_WORKERS"
	EnvPollInterval = "SHEETFLOW_POLL_INTERVAL_MS"
)

// DefaultFileName is looked up in the working directory when no path is
// given.
const DefaultFileName = "sheetflow.toml"

const (
	defaultDatabase       = "sheetflow.db"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
	defaultWorkers        = 1
	defaultPollIntervalMS = 200
)

type Config struct {
	Database string         `json:"database" toml:"database"`
	Log      LogConfig      `json:"log" toml:"log"`
	Executor ExecutorConfig `json:"executor" toml:"executor"`
}

type LogConfig struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"`
}

type ExecutorConfig struct {
	Workers        int `json:"workers" toml:"workers"`
	PollIntervalMS int `json:"poll_interval_ms" toml:"poll_interval_ms"`
}

// PollInterval is the job status polling interval.
func (c ExecutorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() Config {
	return normalize(Config{})
}

// Load reads path, applies environment overrides and fills defaults. An
// empty path tries DefaultFileName and tolerates its absence; an explicit
// path must exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return normalize(cfg), nil
}

// Save writes cfg as TOML, replacing path atomically.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := toml.Marshal(normalize(cfg))
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvDatabase)); v != "" {
		cfg.Database = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Log.Format = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		cfg.Executor.Workers = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvPollInterval)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		cfg.Executor.PollIntervalMS = n
	}
	return nil
}

func normalize(cfg Config) Config {
	cfg.Database = strings.TrimSpace(cfg.Database)
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	switch f := strings.ToLower(strings.TrimSpace(cfg.Log.Format)); f {
	case "json", "text":
		cfg.Log.Format = f
	default:
		cfg.Log.Format = defaultLogFormat
	}
	if cfg.Executor.Workers < 1 {
		cfg.Executor.Workers = defaultWorkers
	}
	if cfg.Executor.PollIntervalMS <= 0 {
		cfg.Executor.PollIntervalMS = defaultPollIntervalMS
	}
	return cfg
}
