package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
)

// RetentionJob deletes cached records older than the retention window
type RetentionJob struct {
	store CacheStore
	db    Maintainer
	today func() time.Time
	days  int
	log   zerolog.Logger
}

// RetentionConfig holds configuration for the retention job
type RetentionConfig struct {
	Store CacheStore
	DB    Maintainer // optional
	Today func() time.Time
	Days  int
	Log   zerolog.Logger
}

// NewRetentionJob creates a new retention job
func NewRetentionJob(cfg RetentionConfig) *RetentionJob {
	return &RetentionJob{
		store: cfg.Store,
		db:    cfg.DB,
		today: cfg.Today,
		days:  cfg.Days,
		log:   cfg.Log.With().Str("job", "retention").Logger(),
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "retention"
}

// Cutoff returns the oldest day kept: today minus the retention window
func (j *RetentionJob) Cutoff() time.Time {
	return domain.AddDays(j.today(), -j.days)
}

// Run purges everything dated before the cutoff
func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.Cutoff()

	deleted, err := j.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge records before %s: %w", domain.FormatDate(cutoff), err)
	}

	j.log.Info().
		Str("cutoff", domain.FormatDate(cutoff)).
		Int64("deleted", deleted).
		Msg("Retention sweep completed")

	if deleted == 0 || j.db == nil {
		return nil
	}

	// Maintenance failures leave the purge intact
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint after purge failed")
	}
	if err := j.db.IncrementalVacuum(); err != nil {
		j.log.Warn().Err(err).Msg("Incremental vacuum after purge failed")
	}
	return nil
}
