// Package config loads termtree settings from a YAML file and TERMTREE_*
// environment variables. Flags applied by the CLI take precedence over both.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all termtree configuration.
type Config struct {
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
	S3      S3      `yaml:"s3"`
	Metrics Metrics `yaml:"metrics"`
}

// Storage selects and locates the term store.
type Storage struct {
	Driver string `yaml:"driver"` // "sqlite", "postgres" or "memory"
	Path   string `yaml:"path"`   // SQLite database file
	DSN    string `yaml:"dsn"`    // Postgres connection string
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// S3 configures remote import sources (s3://bucket/key).
type S3 struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Metrics configures the Prometheus listener. Empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// DefaultDir returns ~/.agentic-research/termtree.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".agentic-research", "termtree"), nil
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) Config {
	return Config{
		Storage: Storage{
			Driver: "sqlite",
			Path:   filepath.Join(dir, "terms.db"),
		},
		Log: Log{Level: "info", Format: "text"},
		S3:  S3{Region: "us-east-1"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path means <DefaultDir>/config.yaml, which may be absent.
func Load(path string) (Config, error) {
	dir, err := DefaultDir()
	if err != nil {
		return Config{}, err
	}
	cfg := Default(dir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file is fine; defaults and env apply.
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Storage.Driver = getenv("TERMTREE_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Path = getenv("TERMTREE_DB", cfg.Storage.Path)
	cfg.Storage.DSN = getenv("TERMTREE_DSN", cfg.Storage.DSN)
	cfg.Log.Level = getenv("TERMTREE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("TERMTREE_LOG_FORMAT", cfg.Log.Format)
	cfg.S3.Region = getenv("TERMTREE_S3_REGION", cfg.S3.Region)
	cfg.S3.Endpoint = getenv("TERMTREE_S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.PathStyle = getenvBool("TERMTREE_S3_PATH_STYLE", cfg.S3.PathStyle)
	cfg.Metrics.Addr = getenv("TERMTREE_METRICS_ADDR", cfg.Metrics.Addr)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
