// Package config loads and validates the settings of a stats run.
//
// Settings are layered: an optional YAML file, then a .env file, then the process
// environment. Command-line flags are applied on top by the caller before Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/github-pr-stats/internal/domain"
)

// Environment variables read by Load.
const (
	EnvToken    = "GITHUB_TOKEN"
	EnvAPIURL   = "GITHUB_API_URL"
	EnvWorkers  = "PR_STATS_WORKERS"
	EnvLogLevel = "PR_STATS_LOG_LEVEL"
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatTable = "table"
)

// Config holds the application configuration.
type Config struct {
	// GitHub
	Token      string        `yaml:"-"`
	APIURL     string        `yaml:"api_url"`
	Timeout    time.Duration `yaml:"-"`
	RawTimeout string        `yaml:"timeout"`

	// Fetch
	Repository string `yaml:"repository"`
	State      string `yaml:"state"`
	MaxPages   int    `yaml:"max_pages"`
	PerPage    int    `yaml:"per_page"`
	Workers    int    `yaml:"workers"`
	Estimate   bool   `yaml:"estimate"`
	ExactCount bool   `yaml:"exact_count"`

	// Output
	Top         int    `yaml:"top"`
	Format      string `yaml:"format"`
	MetricsFile string `yaml:"metrics_file"`
	LogLevel    string `yaml:"log_level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		RawTimeout: "30s",
		State:      "closed",
		MaxPages:   -1,
		PerPage:    100,
		Workers:    2,
		Estimate:   true,
		Top:        3,
		Format:     FormatText,
		LogLevel:   "warn",
	}
}

// Load builds the configuration from the YAML file at path (skipped when empty),
// the .env file in the working directory if present, and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg.Token = getEnv(EnvToken, cfg.Token)
	cfg.APIURL = getEnv(EnvAPIURL, cfg.APIURL)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ConfigError{Field: EnvWorkers, Message: fmt.Sprintf("must be an integer, got %q", v)}
		}
		cfg.Workers = n
	}

	if cfg.RawTimeout != "" {
		d, err := time.ParseDuration(cfg.RawTimeout)
		if err != nil {
			return nil, &ConfigError{Field: "timeout", Message: fmt.Sprintf("invalid duration %q", cfg.RawTimeout)}
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Token == "" {
		return &ConfigError{Field: EnvToken, Message: "GitHub token is required"}
	}
	if _, err := domain.ParseRepository(c.Repository); err != nil {
		return &ConfigError{Field: "repository", Message: err.Error()}
	}
	switch c.State {
	case "open", "closed", "all":
	default:
		return &ConfigError{Field: "state", Message: "must be 'open', 'closed' or 'all'"}
	}
	if c.MaxPages != -1 && c.MaxPages < 1 {
		return &ConfigError{Field: "max_pages", Message: "must be -1 (all pages) or a positive number"}
	}
	if c.PerPage < 1 || c.PerPage > 100 {
		return &ConfigError{Field: "per_page", Message: "must be between 1 and 100"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "workers", Message: "must be at least 1"}
	}
	if c.Top < 0 {
		return &ConfigError{Field: "top", Message: "must not be negative"}
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatTable:
	default:
		return &ConfigError{Field: "format", Message: "must be 'text', 'json' or 'table'"}
	}
	if c.Timeout < 0 {
		return &ConfigError{Field: "timeout", Message: "must not be negative"}
	}
	return nil
}

// RepositoryRef returns the parsed repository. Call Validate first.
func (c *Config) RepositoryRef() domain.Repository {
	repo, _ := domain.ParseRepository(c.Repository)
	return repo
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
