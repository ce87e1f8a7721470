package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultWALFrameWarning is the WAL size, in frames, above which the check warns
const DefaultWALFrameWarning = 1000

// HealthCheckJob verifies cache.db integrity and watches WAL growth
type HealthCheckJob struct {
	db           HealthChecker
	frameWarning int
	log          zerolog.Logger
}

// NewHealthCheckJob creates a new health check job
func NewHealthCheckJob(db HealthChecker, log zerolog.Logger) *HealthCheckJob {
	return &HealthCheckJob{
		db:           db,
		frameWarning: DefaultWALFrameWarning,
		log:          log.With().Str("job", "health_check").Logger(),
	}
}

// Name returns the job name
func (j *HealthCheckJob) Name() string {
	return "health_check"
}

// Run fails on a corrupted database. WAL status problems are only logged.
func (j *HealthCheckJob) Run(ctx context.Context) error {
	if err := j.db.IntegrityCheck(ctx); err != nil {
		// The cache can be rebuilt from upstream by deleting cache.db
		j.log.Error().Err(err).Msg("Cache database integrity check failed")
		return fmt.Errorf("cache database is corrupted: %w", err)
	}

	status, err := j.db.WALCheckpointStatus(ctx)
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to check WAL checkpoint")
		return nil
	}

	event := j.log.Debug()
	msg := "WAL checkpoint status OK"
	if status.Frames > j.frameWarning {
		event = j.log.Warn()
		msg = "WAL file is large, checkpoint may be needed"
	}
	event.
		Bool("busy", status.Busy).
		Int("wal_frames", status.Frames).
		Int("checkpointed", status.Checkpointed).
		Msg(msg)

	return nil
}
