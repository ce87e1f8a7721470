// Package scheduler runs the background cache maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// New creates a new scheduler. Jobs run with a context that is cancelled by Stop.
func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job on a cron schedule with a seconds field.
// An empty schedule leaves the job unscheduled.
// Schedule examples:
//   - "0 30 3 * * *"       - 03:30 every day
//   - "0 40 15 * * MON-FRI" - 15:40 on weekdays
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if schedule == "" {
		s.log.Info().Str("job", job.Name()).Msg("Job has no schedule, not registered")
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		_ = s.run(s.ctx, job)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	return s.run(s.ctx, job)
}

// RunAsync executes a job in the background. Stop waits for it.
func (s *Scheduler) RunAsync(job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.run(s.ctx, job)
	}()
}

func (s *Scheduler) run(ctx context.Context, job Job) (err error) {
	log := s.log.With().Str("job", job.Name()).Str("run_id", uuid.NewString()).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Job panicked")
			err = fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()

	log.Debug().Msg("Running job")
	start := time.Now()

	if err = job.Run(ctx); err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Job failed")
		return err
	}

	log.Debug().Dur("elapsed", time.Since(start)).Msg("Job completed")
	return nil
}
