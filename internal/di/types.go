// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/sectorwatch/internal/clients/akshare"
	"github.com/aristath/sectorwatch/internal/database"
	"github.com/aristath/sectorwatch/internal/modules/cache"
	"github.com/aristath/sectorwatch/internal/modules/snapshots"
	"github.com/aristath/sectorwatch/internal/modules/tradingday"
	"github.com/aristath/sectorwatch/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	CacheDB *database.DB

	// Repositories
	Store *cache.Store

	// Clients
	Client *akshare.Client

	// Services
	Resolver      *tradingday.Resolver
	IndexService  *snapshots.Service
	SectorService *snapshots.Service
	Scheduler     *scheduler.Scheduler
}

// JobInstances holds the background jobs so main can schedule or trigger them
type JobInstances struct {
	Retention   *scheduler.RetentionJob
	Preload     *scheduler.PreloadJob
	Warm        *scheduler.WarmJob
	HealthCheck *scheduler.HealthCheckJob
}

// Close releases the container's resources. Safe to call on a partial container.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.CacheDB != nil {
		return c.CacheDB.Close()
	}
	return nil
}
