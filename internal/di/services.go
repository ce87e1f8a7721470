package di

import (
	"fmt"
	"time"

	"github.com/aristath/sectorwatch/internal/clients/akshare"
	"github.com/aristath/sectorwatch/internal/config"
	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/aristath/sectorwatch/internal/modules/cache"
	"github.com/aristath/sectorwatch/internal/modules/snapshots"
	"github.com/aristath/sectorwatch/internal/modules/tradingday"
	"github.com/aristath/sectorwatch/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeServices creates the store, upstream client, resolver and snapshot services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.CacheDB == nil {
		return fmt.Errorf("container has no cache database")
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid market timezone: %w", err)
	}

	container.Store = cache.NewStore(container.CacheDB.Conn(), loc, log)

	container.Client = akshare.NewClient(log,
		akshare.WithBaseURL(cfg.AKToolsURL),
		akshare.WithRateLimit(cfg.UpstreamRate),
		akshare.WithTimeout(cfg.UpstreamTimeout),
		akshare.WithLocation(loc),
	)

	container.Resolver = tradingday.NewResolver(domain.Clock(time.Now), loc, cfg.ResolveMaxBack, log)

	container.IndexService = snapshots.NewService(
		snapshots.NewIndexKind(container.Client, domain.MajorIndices, log),
		container.Store,
		container.Resolver,
		cfg.FetchConcurrency,
		log,
	)
	container.SectorService = snapshots.NewService(
		snapshots.NewSectorKind(container.Client, log),
		container.Store,
		container.Resolver,
		cfg.FetchConcurrency,
		log,
	)

	container.Scheduler = scheduler.New(log)

	return nil
}
