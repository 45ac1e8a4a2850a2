// Package scheduler runs a job on a cron schedule, once at start-up and then
// at every tick.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dues/internal/log"
)

// Job is invoked with the instant of the tick.
type Job func(ctx context.Context, now time.Time) error

type Scheduler struct {
	schedule string
	job      Job
	logger   *log.Logger
	now      func() time.Time

	cron *cron.Cron

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New validates schedule (five-field cron or a descriptor such as "@daily")
// and prepares a scheduler that fires in loc.
func New(schedule string, loc *time.Location, job Job, logger *log.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentScheduler)

	return &Scheduler{
		schedule: schedule,
		job:      job,
		logger:   logger,
		now:      time.Now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}, nil
}

// Start runs the job once, then schedules it. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.RunNow(ctx)

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunNow(ctx) }); err != nil {
		s.mu.Lock()
		s.running = false
		s.cancel()
		s.mu.Unlock()
		return fmt.Errorf("schedule job: %w", err)
	}
	s.cron.Start()

	s.logger.InfoContext(ctx, "Scheduler started",
		log.FieldSchedule, s.schedule,
		"next_run", s.Next())
	return nil
}

// RunNow executes the job synchronously and logs its outcome.
func (s *Scheduler) RunNow(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := s.now()
	if err := s.job(ctx, now); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled job failed", log.FieldError, err)
		return
	}
	s.logger.DebugContext(ctx, "Scheduled job finished", "at", now)
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop gracefully stops the scheduler and waits for a running job.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	cancel()

	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
