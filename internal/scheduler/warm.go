package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/sectorwatch/internal/domain"
	"github.com/rs/zerolog"
)

// WarmJob fetches today's snapshots after the close so the first request is a cache hit
type WarmJob struct {
	services []SnapshotService
	log      zerolog.Logger
}

// NewWarmJob creates a new warm job over the given services
func NewWarmJob(log zerolog.Logger, services ...SnapshotService) *WarmJob {
	return &WarmJob{
		services: services,
		log:      log.With().Str("job", "warm").Logger(),
	}
}

// Name returns the job name
func (j *WarmJob) Name() string {
	return "warm"
}

// Run warms every service, continuing past failures
func (j *WarmJob) Run(ctx context.Context) error {
	var errs []error
	for _, svc := range j.services {
		snap, err := svc.Snapshot(ctx, svc.Today())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", svc.Kind(), err))
			continue
		}

		j.log.Info().
			Str("kind", string(svc.Kind())).
			Str("date", domain.FormatDate(snap.Date)).
			Str("source", string(snap.Source)).
			Int("records", len(snap.Records)).
			Msg("Snapshot warmed")
	}
	return errors.Join(errs...)
}
