package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard 5-field expressions (minute through
// day-of-week), matching what the maintenance jobs advertise.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// parseSchedule validates a job's cron expression.
func parseSchedule(expr string) (cron.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// entry pairs a job with the mutex guarding against overlapping runs.
type entry struct {
	job  Job
	busy *sync.Mutex
}

// Scheduler executes registered jobs on their cron schedules. A tick that
// lands while the previous run of the same job is still going is skipped, so
// a slow WAL checkpoint never stacks up behind itself.
type Scheduler struct {
	mu      sync.Mutex
	entries []entry
	runner  *cron.Cron
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewScheduler creates an empty scheduler. Register jobs before Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// RegisterJob adds a job. Names must be unique; registration after Start has
// no effect on the running schedule.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.job.Name() == j.Name() {
			return fmt.Errorf("cron: duplicate job name %q", j.Name())
		}
	}
	s.entries = append(s.entries, entry{job: j, busy: &sync.Mutex{}})
	return nil
}

// Start validates every schedule and begins ticking. An invalid expression
// fails the whole start so misconfiguration surfaces at boot, not at the
// first missed tick.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.runner = cron.New(cron.WithParser(scheduleParser))

	for _, e := range s.entries {
		if _, err := s.runner.AddFunc(e.job.Schedule(), s.tick(ctx, e)); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", e.job.Name(), err)
		}
	}

	s.runner.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.entries))
	return nil
}

// tick wraps one job run with the overlap guard and error logging.
func (s *Scheduler) tick(ctx context.Context, e entry) func() {
	return func() {
		// TryLock keeps the check-and-acquire atomic: if the previous tick
		// is still running this one is dropped, not queued.
		if !e.busy.TryLock() {
			s.logger.Warn("cron: job still running, skipping tick", "job", e.job.Name())
			return
		}
		defer e.busy.Unlock()

		s.logger.Debug("cron: job started", "job", e.job.Name())
		if err := e.job.Run(ctx); err != nil {
			s.logger.Error("cron: job failed", "job", e.job.Name(), "error", err)
			return
		}
		s.logger.Debug("cron: job completed", "job", e.job.Name())
	}
}

// Stop cancels the job context and waits for in-flight runs to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.runner != nil {
		<-s.runner.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
