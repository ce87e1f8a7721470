package di

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/sectorwatch/internal/config"
	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:           t.TempDir(),
		AKToolsURL:        "http://127.0.0.1:1",
		UpstreamTimeout:   time.Second,
		UpstreamRate:      5,
		MarketTimezone:    "Asia/Shanghai",
		ResolveMaxBack:    10,
		FetchConcurrency:  4,
		RetentionDays:     180,
		RetentionSchedule: "0 30 3 * * *",
		PreloadThreshold:  100,
		PreloadIndexDays:  90,
		PreloadSectorDays: 30,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	require.NotNil(t, jobs)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.Store)
	assert.NotNil(t, container.Client)
	assert.NotNil(t, container.Resolver)
	assert.Equal(t, 10, container.Resolver.MaxBackDays())
	assert.Equal(t, "Asia/Shanghai", container.Resolver.Location().String())

	assert.Equal(t, domain.KindIndex, container.IndexService.Kind())
	assert.Equal(t, domain.KindSector, container.SectorService.Kind())

	assert.NotNil(t, jobs.Retention)
	assert.NotNil(t, jobs.Preload)
	assert.NotNil(t, jobs.Warm)
	require.NotNil(t, jobs.HealthCheck)
	assert.NoError(t, jobs.HealthCheck.Run(context.Background()))

	// Schema applied, cache starts empty so preload is due
	needed, err := jobs.Preload.Needed(context.Background())
	require.NoError(t, err)
	assert.True(t, needed)
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.WarmSchedule = "whenever"

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register jobs")
	assert.Nil(t, container)
	assert.Nil(t, jobs)
}

func TestContainer_CloseNil(t *testing.T) {
	var c *Container
	assert.NoError(t, c.Close())
	assert.NoError(t, (&Container{}).Close())
}
