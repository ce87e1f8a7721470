package di

import (
	"fmt"

	"github.com/aristath/sectorwatch/internal/config"
	"github.com/aristath/sectorwatch/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and adds the periodic ones to the scheduler.
// The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		Retention: scheduler.NewRetentionJob(scheduler.RetentionConfig{
			Store: container.Store,
			DB:    container.CacheDB,
			Today: container.Resolver.Today,
			Days:  cfg.RetentionDays,
			Log:   log,
		}),
		Preload: scheduler.NewPreloadJob(scheduler.PreloadConfig{
			Store:      container.Store,
			Indices:    container.IndexService,
			Sectors:    container.SectorService,
			Threshold:  cfg.PreloadThreshold,
			IndexDays:  cfg.PreloadIndexDays,
			SectorDays: cfg.PreloadSectorDays,
			Log:        log,
		}),
		Warm:        scheduler.NewWarmJob(log, container.IndexService, container.SectorService),
		HealthCheck: scheduler.NewHealthCheckJob(container.CacheDB, log),
	}

	if err := container.Scheduler.AddJob(cfg.RetentionSchedule, instances.Retention); err != nil {
		return nil, fmt.Errorf("failed to schedule retention job: %w", err)
	}
	if err := container.Scheduler.AddJob(cfg.WarmSchedule, instances.Warm); err != nil {
		return nil, fmt.Errorf("failed to schedule warm job: %w", err)
	}
	if err := container.Scheduler.AddJob(cfg.HealthSchedule, instances.HealthCheck); err != nil {
		return nil, fmt.Errorf("failed to schedule health check job: %w", err)
	}

	log.Info().
		Str("retention_schedule", cfg.RetentionSchedule).
		Str("warm_schedule", cfg.WarmSchedule).
		Str("health_schedule", cfg.HealthSchedule).
		Msg("Background jobs registered")

	return instances, nil
}
