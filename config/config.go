// Package config loads runtime configuration from an optional YAML file
// with environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for the engine host.
type Config struct {
	// ContentDir holds the Lua definition files.
	ContentDir string `yaml:"content_dir"`
	// SavePath is where file saves are written.
	SavePath string `yaml:"save_path"`
	// RedisAddr enables the Redis save store when non-empty; the
	// in-memory store is used otherwise.
	RedisAddr string `yaml:"redis_addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// TickLimit stops batch simulation after this many ticks; zero means
	// no limit.
	TickLimit int `yaml:"tick_limit"`
}

// Default returns the configuration used when no file or env is present.
func Default() *Config {
	return &Config{
		ContentDir: "content",
		SavePath:   "saves/dungeonmind.sav",
		LogLevel:   "info",
	}
}

// Load reads an optional YAML file and applies environment overrides. A
// missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	cfg.ContentDir = getEnv("DUNGEONMIND_CONTENT_DIR", cfg.ContentDir)
	cfg.SavePath = getEnv("DUNGEONMIND_SAVE_PATH", cfg.SavePath)
	cfg.RedisAddr = getEnv("DUNGEONMIND_REDIS_ADDR", cfg.RedisAddr)
	cfg.LogLevel = getEnv("DUNGEONMIND_LOG_LEVEL", cfg.LogLevel)
	return cfg, nil
}

// Level converts the configured log level to a slog.Level.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
