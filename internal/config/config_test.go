package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "LOG_PRETTY", "DEV_MODE", "AKTOOLS_URL",
		"UPSTREAM_TIMEOUT_SECONDS", "UPSTREAM_RATE_LIMIT", "MARKET_TIMEZONE",
		"RESOLVE_MAX_BACK_DAYS", "FETCH_CONCURRENCY", "RETENTION_DAYS",
		"PRELOAD_THRESHOLD", "PRELOAD_INDEX_DAYS", "PRELOAD_SECTOR_DAYS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	clearEnv(t)
	t.Setenv("DATA_DIR", filepath.Join(t.TempDir(), "data"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.AKToolsURL)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 5, cfg.UpstreamRate)
	assert.Equal(t, "Asia/Shanghai", cfg.MarketTimezone)
	assert.Equal(t, 10, cfg.ResolveMaxBack)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 180, cfg.RetentionDays)
	assert.Equal(t, 100, cfg.PreloadThreshold)
	assert.Equal(t, 180, cfg.PreloadIndexDays)
	assert.Equal(t, 30, cfg.PreloadSectorDays)
	assert.Equal(t, "0 0 * * * *", cfg.HealthSchedule)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "cache.db"), cfg.CachePath())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	clearEnv(t)
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9100")
	t.Setenv("AKTOOLS_URL", "http://aktools:8080")
	t.Setenv("FETCH_CONCURRENCY", "8")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("WARM_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "http://aktools:8080", cfg.AKToolsURL)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.True(t, cfg.DevMode)
	assert.Empty(t, cfg.WarmSchedule, "an empty schedule disables the job")
}

func validConfig() Config {
	return Config{
		Port:              8000,
		DataDir:           "/tmp",
		AKToolsURL:        "http://127.0.0.1:8080",
		UpstreamTimeout:   30 * time.Second,
		UpstreamRate:      5,
		MarketTimezone:    "Asia/Shanghai",
		ResolveMaxBack:    10,
		FetchConcurrency:  4,
		RetentionDays:     180,
		RetentionSchedule: "0 30 3 * * *",
		PreloadThreshold:  100,
		PreloadIndexDays:  180,
		PreloadSectorDays: 30,
		WarmSchedule:      "0 40 15 * * MON-FRI",
		HealthSchedule:    "0 0 * * * *",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Port = 0 }, wantErr: "PORT"},
		{name: "no upstream", mutate: func(c *Config) { c.AKToolsURL = "" }, wantErr: "AKTOOLS_URL"},
		{name: "zero back days", mutate: func(c *Config) { c.ResolveMaxBack = 0 }, wantErr: "RESOLVE_MAX_BACK_DAYS"},
		{name: "negative concurrency", mutate: func(c *Config) { c.FetchConcurrency = -1 }, wantErr: "FETCH_CONCURRENCY"},
		{name: "zero retention", mutate: func(c *Config) { c.RetentionDays = 0 }, wantErr: "RETENTION_DAYS"},
		{name: "unknown zone", mutate: func(c *Config) { c.MarketTimezone = "Mars/Olympus" }, wantErr: "MARKET_TIMEZONE"},
		{name: "bad schedule", mutate: func(c *Config) { c.WarmSchedule = "every day" }, wantErr: "WARM_SCHEDULE"},
		{name: "bad health schedule", mutate: func(c *Config) { c.HealthSchedule = "0 61 * * * *" }, wantErr: "HEALTH_SCHEDULE"},
		{name: "disabled schedule", mutate: func(c *Config) { c.RetentionSchedule = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
