package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
)

// PreloadJob fills an almost empty cache with recent history.
//
// Index history is backfilled in bulk over a calendar window. Sectors have no
// bulk path, so the job walks back one trading day at a time until it has
// stored the requested number of sector days.
type PreloadJob struct {
	store      CacheStore
	indices    SnapshotService
	sectors    SnapshotService
	threshold  int
	indexDays  int
	sectorDays int
	log        zerolog.Logger
}

// PreloadConfig holds configuration for the preload job
type PreloadConfig struct {
	Store      CacheStore
	Indices    SnapshotService
	Sectors    SnapshotService
	Threshold  int
	IndexDays  int
	SectorDays int
	Log        zerolog.Logger
}

// NewPreloadJob creates a new preload job
func NewPreloadJob(cfg PreloadConfig) *PreloadJob {
	return &PreloadJob{
		store:      cfg.Store,
		indices:    cfg.Indices,
		sectors:    cfg.Sectors,
		threshold:  cfg.Threshold,
		indexDays:  cfg.IndexDays,
		sectorDays: cfg.SectorDays,
		log:        cfg.Log.With().Str("job", "preload").Logger(),
	}
}

// Name returns the job name
func (j *PreloadJob) Name() string {
	return "preload"
}

// Needed reports whether the cache holds fewer records than the threshold
func (j *PreloadJob) Needed(ctx context.Context) (bool, error) {
	counts, err := j.store.Counts(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count cached records: %w", err)
	}
	return counts.Total() < j.threshold, nil
}

// Run preloads both kinds. Failures are logged per day or instrument; the
// job only fails when the cache cannot be counted.
func (j *PreloadJob) Run(ctx context.Context) error {
	needed, err := j.Needed(ctx)
	if err != nil {
		return err
	}
	if !needed {
		j.log.Debug().Int("threshold", j.threshold).Msg("Cache already populated, skipping preload")
		return nil
	}

	j.log.Info().
		Int("index_days", j.indexDays).
		Int("sector_days", j.sectorDays).
		Msg("Preloading cache")

	if j.indices != nil {
		j.preloadIndices(ctx)
	}
	if j.sectors != nil {
		j.preloadSectors(ctx)
	}
	return ctx.Err()
}

func (j *PreloadJob) preloadIndices(ctx context.Context) {
	to := j.indices.Today()
	from := domain.AddDays(to, -j.indexDays)

	n, ok, err := j.indices.Backfill(ctx, from, to)
	if err != nil {
		j.log.Error().Err(err).Msg("Index backfill failed")
		return
	}
	if ok {
		j.log.Info().Int("records", n).Str("from", domain.FormatDate(from)).Msg("Index history preloaded")
		return
	}

	// No bulk path, walk back like sectors do
	j.walkBack(ctx, j.indices, j.indexDays)
}

func (j *PreloadJob) preloadSectors(ctx context.Context) {
	j.walkBack(ctx, j.sectors, j.sectorDays)
}

// walkBack serves snapshots for the last tradingDays trading days, newest
// first. It gives up after twice as many calendar days as requested.
func (j *PreloadJob) walkBack(ctx context.Context, svc SnapshotService, tradingDays int) {
	log := j.log.With().Str("kind", string(svc.Kind())).Logger()

	day := svc.Today()
	stored := 0
	for attempts := 0; stored < tradingDays && attempts < tradingDays*2; attempts++ {
		if ctx.Err() != nil {
			return
		}

		snap, err := svc.Snapshot(ctx, day)
		if err != nil {
			if errors.Is(err, domain.ErrNoTradingDay) {
				log.Warn().Str("date", domain.FormatDate(day)).Msg("No trading data further back, stopping preload")
				break
			}
			log.Warn().Err(err).Str("date", domain.FormatDate(day)).Msg("Preload skipped day")
			day = domain.AddDays(day, -1)
			continue
		}

		stored++
		day = domain.AddDays(snap.Date, -1)
	}

	log.Info().Int("trading_days", stored).Msg("Preload walk completed")
}
