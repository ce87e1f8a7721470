// Package main is the entry point for sectorwatch, an HTTP façade over AKTools
// that serves A-share major index and industry sector daily changes.
//
// Requests for non-trading days resolve to the nearest earlier trading day and
// every fetched result is kept in a local SQLite cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/sectorwatch/internal/config"
	"github.com/aristath/sectorwatch/internal/di"
	snapshothandlers "github.com/aristath/sectorwatch/internal/modules/snapshots/handlers"
	"github.com/aristath/sectorwatch/internal/server"
	"github.com/aristath/sectorwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	base := fmt.Sprintf("http://localhost:%d", cfg.Port)
	log.Info().
		Str("aktools", cfg.AKToolsURL).
		Str("timezone", cfg.MarketTimezone).
		Str("data_dir", cfg.DataDir).
		Msg("Starting sectorwatch")
	log.Info().Msgf("Industry sectors: %s/api/industry?date=YYYYMMDD", base)
	log.Info().Msgf("Major indices:    %s/api/index?date=YYYYMMDD", base)
	log.Info().Msgf("System status:    %s/api/system/status", base)

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	if err := container.Scheduler.RunNow(jobs.HealthCheck); err != nil {
		log.Error().Err(err).Msg("Cache database failed its health check, delete it to rebuild from upstream")
	}

	// Purge before serving so stale rows never answer a request
	if err := container.Scheduler.RunNow(jobs.Retention); err != nil {
		log.Warn().Err(err).Msg("Startup retention failed")
	}
	container.Scheduler.RunAsync(jobs.Preload)
	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Snapshots: snapshothandlers.NewHandler(container.IndexService, container.SectorService, container.Resolver.Location(), log),
		System:    server.NewSystemHandlers(log, container.Store, container.CacheDB, time.Now()),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	// Stop accepting requests first, then cancel background jobs
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close cache database")
	}

	log.Info().Msg("Server stopped")
}
