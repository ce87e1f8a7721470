// Package config provides configuration management functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata" // market zone must load on hosts without a zoneinfo database

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	Port      int
	DataDir   string // Directory holding cache.db (always absolute)
	LogLevel  string
	LogPretty bool
	DevMode   bool

	AKToolsURL      string
	UpstreamTimeout time.Duration
	UpstreamRate    int // requests per second

	MarketTimezone   string
	ResolveMaxBack   int // calendar days searched backward for a trading day
	FetchConcurrency int // items fetched in parallel per request

	RetentionDays     int
	RetentionSchedule string

	PreloadThreshold  int // preload runs when fewer records than this are cached
	PreloadIndexDays  int // calendar days of index history backfilled
	PreloadSectorDays int // trading days of sector history backfilled
	WarmSchedule      string
	HealthSchedule    string
}

// Load reads configuration from environment variables, after loading .env if present
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		Port:      getEnvAsInt("PORT", 8000),
		DataDir:   dataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		DevMode:   getEnvAsBool("DEV_MODE", false),

		AKToolsURL:      getEnv("AKTOOLS_URL", "http://127.0.0.1:8080"),
		UpstreamTimeout: time.Duration(getEnvAsInt("UPSTREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		UpstreamRate:    getEnvAsInt("UPSTREAM_RATE_LIMIT", 5),

		MarketTimezone:   getEnv("MARKET_TIMEZONE", "Asia/Shanghai"),
		ResolveMaxBack:   getEnvAsInt("RESOLVE_MAX_BACK_DAYS", 10),
		FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", 4),

		RetentionDays:     getEnvAsInt("RETENTION_DAYS", 180),
		RetentionSchedule: getEnvAllowEmpty("RETENTION_SCHEDULE", "0 30 3 * * *"),

		PreloadThreshold:  getEnvAsInt("PRELOAD_THRESHOLD", 100),
		PreloadIndexDays:  getEnvAsInt("PRELOAD_INDEX_DAYS", 180),
		PreloadSectorDays: getEnvAsInt("PRELOAD_SECTOR_DAYS", 30),
		WarmSchedule:      getEnvAllowEmpty("WARM_SCHEDULE", "0 40 15 * * MON-FRI"),
		HealthSchedule:    getEnvAllowEmpty("HEALTH_SCHEDULE", "0 0 * * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.AKToolsURL == "" {
		errs = append(errs, errors.New("AKTOOLS_URL is required"))
	}

	positive := []struct {
		name  string
		value int
	}{
		{"UPSTREAM_TIMEOUT_SECONDS", int(c.UpstreamTimeout / time.Second)},
		{"UPSTREAM_RATE_LIMIT", c.UpstreamRate},
		{"RESOLVE_MAX_BACK_DAYS", c.ResolveMaxBack},
		{"FETCH_CONCURRENCY", c.FetchConcurrency},
		{"RETENTION_DAYS", c.RetentionDays},
		{"PRELOAD_INDEX_DAYS", c.PreloadIndexDays},
		{"PRELOAD_SECTOR_DAYS", c.PreloadSectorDays},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.value))
		}
	}
	if c.PreloadThreshold < 0 {
		errs = append(errs, fmt.Errorf("PRELOAD_THRESHOLD must not be negative, got %d", c.PreloadThreshold))
	}

	if _, err := time.LoadLocation(c.MarketTimezone); err != nil {
		errs = append(errs, fmt.Errorf("MARKET_TIMEZONE %q: %w", c.MarketTimezone, err))
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedules := map[string]string{
		"RETENTION_SCHEDULE": c.RetentionSchedule,
		"WARM_SCHEDULE":      c.WarmSchedule,
		"HEALTH_SCHEDULE":    c.HealthSchedule,
	}
	for name, spec := range schedules {
		if spec == "" {
			continue // disabled
		}
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", name, spec, err))
		}
	}

	return errors.Join(errs...)
}

// Location returns the market time zone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.MarketTimezone)
}

// CachePath returns the path of the cache database
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty lets an explicitly empty variable override the default
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
