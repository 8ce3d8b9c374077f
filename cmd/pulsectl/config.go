package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"chanpulse/internal/blobstore"
	"chanpulse/internal/driver/telegram"
	"chanpulse/pkg/livecache"

	"github.com/caarlos0/env/v11"
)

const (
	envPrefix             = "PULSE_"
	envConfigFile         = envPrefix + "CONFIG_FILE"
	defaultConfigFilePath = "config/pulse.json"
	defaultCachePath      = ".cache/pulse/cache.db"
	defaultFetchTimeout   = 30 * time.Second
	defaultRetention      = 24 * time.Hour
)

type appConfig struct {
	logLevel slog.Level

	cacheDriver  string
	cachePath    string
	freshness    time.Duration
	fetchTimeout time.Duration
	retention    time.Duration

	telegram telegram.Config
}

type fileConfig struct {
	LogLevel string          `json:"log_level" env:"LOG_LEVEL"`
	Cache    fileCacheConfig `json:"cache" envPrefix:"CACHE_"`
	Telegram telegram.Config `json:"telegram" envPrefix:"TELEGRAM_"`
}

type fileCacheConfig struct {
	Driver       string `json:"driver" env:"DRIVER"`
	Path         string `json:"path" env:"PATH"`
	Freshness    string `json:"freshness" env:"FRESHNESS"`
	FetchTimeout string `json:"fetch_timeout" env:"FETCH_TIMEOUT"`
	Retention    string `json:"retention" env:"RETENTION"`
}

// loadConfig reads the optional config file and overlays PULSE_* variables.
func loadConfig() (appConfig, error) {
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}

	var parsed fileConfig
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return appConfig{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
		if err := json.Unmarshal(data, &parsed); err != nil {
			return appConfig{}, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}
	if err := env.ParseWithOptions(&parsed, env.Options{Prefix: envPrefix}); err != nil {
		return appConfig{}, fmt.Errorf("parse env: %w", err)
	}

	return buildAppConfig(parsed)
}

// resolveConfigFilePath returns an empty path when no file is configured and the
// default one does not exist.
func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	info, err := os.Stat(defaultConfigFilePath)
	if err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("config file %s is a directory", defaultConfigFilePath)
		}
		return defaultConfigFilePath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat config file %s: %w", defaultConfigFilePath, err)
	}

	return "", nil
}

func buildAppConfig(parsed fileConfig) (appConfig, error) {
	cfg := appConfig{
		logLevel:     slog.LevelInfo,
		cacheDriver:  blobstore.DriverSQLite,
		cachePath:    defaultCachePath,
		freshness:    livecache.DefaultFreshness,
		fetchTimeout: defaultFetchTimeout,
		retention:    defaultRetention,
		telegram:     parsed.Telegram,
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if driver := strings.ToLower(strings.TrimSpace(parsed.Cache.Driver)); driver != "" {
		if driver != blobstore.DriverMemory && driver != blobstore.DriverSQLite {
			return appConfig{}, fmt.Errorf("parse cache.driver: unsupported driver %q", parsed.Cache.Driver)
		}
		cfg.cacheDriver = driver
	}
	if path := strings.TrimSpace(parsed.Cache.Path); path != "" {
		cfg.cachePath = path
	}

	freshness, err := parsePositiveDuration("cache.freshness", parsed.Cache.Freshness, cfg.freshness)
	if err != nil {
		return appConfig{}, err
	}
	cfg.freshness = freshness

	fetchTimeout, err := parsePositiveDuration("cache.fetch_timeout", parsed.Cache.FetchTimeout, cfg.fetchTimeout)
	if err != nil {
		return appConfig{}, err
	}
	cfg.fetchTimeout = fetchTimeout

	retention, err := parsePositiveDuration("cache.retention", parsed.Cache.Retention, cfg.retention)
	if err != nil {
		return appConfig{}, err
	}
	if retention < cfg.freshness {
		return appConfig{}, fmt.Errorf("parse cache.retention: must be >= cache.freshness (%s)", cfg.freshness)
	}
	cfg.retention = retention

	return cfg, nil
}

func parsePositiveDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("parse %s: must be > 0", field)
	}

	return value, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
