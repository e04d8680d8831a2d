package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"PortfolioLedger/internal/observability"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	timeout time.Duration
	metrics *observability.Metrics
	log     zerolog.Logger
}

// New creates a scheduler whose schedules are read in loc (UTC when nil).
// Schedules carry a leading seconds field. Each run gets a context derived
// from ctx, bounded by timeout.
func New(ctx context.Context, loc *time.Location, timeout time.Duration, metrics *observability.Metrics, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := log.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:     ctx,
		timeout: timeout,
		metrics: metrics,
		log:     logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 5 0 * * *"        - 00:05:00 every day
//   - "@hourly"            - Every hour
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.run(job) }); err != nil {
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
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.run(job)
}

func (s *Scheduler) run(job Job) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	err := job.Run(ctx)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Msg("Job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Msg("Job completed")
	}
	if s.metrics != nil {
		s.metrics.SchedulerRuns.WithLabelValues(job.Name(), outcome).Inc()
	}
	return err
}
