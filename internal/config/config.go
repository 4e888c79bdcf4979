// Package config loads contracttape settings.
//
// Sources, later ones winning: built-in defaults, an optional YAML file,
// a .env file, then CONTRACTTAPE_* environment variables. Nested keys use a
// double underscore, so CONTRACTTAPE_POLICY__LIVE_PATTERN sets
// policy.live_pattern.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roach88/contracttape/internal/lifecycle"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CONTRACTTAPE_"

// DefaultFile is read when Load is given no path. It may be absent.
const DefaultFile = "contracttape.yaml"

type Config struct {
	// Fixtures is the directory holding recording files.
	Fixtures string `koanf:"fixtures"`

	// HistoryDB is the SQLite impact log. Empty disables history.
	HistoryDB string `koanf:"history_db"`

	// Environment names the target environment for the live pattern.
	Environment string `koanf:"environment"`

	Policy lifecycle.Policy `koanf:"policy"`
	Log    LogConfig        `koanf:"log"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text or json

	// File enables a rotating log file next to stderr output.
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

var defaults = map[string]any{
	"fixtures":         "recordings",
	"history_db":       "",
	"log.level":        "info",
	"log.format":       "text",
	"log.max_size_mb":  25,
	"log.max_backups":  10,
	"log.max_age_days": 14,
	"log.compress":     true,
}

// Load reads configuration. path names a YAML file; an empty path falls
// back to DefaultFile, which may be missing. An explicitly named file must
// exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("failed to load .env file", "error", err)
	}

	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks values koanf cannot type-check.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	if c.Fixtures == "" {
		return errors.New("fixtures: must not be empty")
	}
	return nil
}
