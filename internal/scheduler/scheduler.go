package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultInterval is used when a job is scheduled with a non-positive interval.
const DefaultInterval = 3 * time.Second

// Scheduler runs a single job on a fixed interval in the background.
// Runs never overlap: a tick that arrives while the previous run is still
// in progress is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	name      string
	interval  time.Duration
	job       func()
}

// New creates a Scheduler for job. Nothing runs until Start is called.
func New(name string, interval time.Duration, job func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		name:      name,
		interval:  interval,
		job:       job,
	}
}

// Start schedules the job and starts the underlying scheduler. The first run
// happens immediately.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.job)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	slog.Debug("scheduler started", "job", s.name, "interval", s.interval)
	return nil
}

// Stop cancels future runs and waits for a run in progress to finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
		slog.Debug("scheduler stopped", "job", s.name)
	}
}
