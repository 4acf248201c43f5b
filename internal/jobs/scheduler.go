package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type Schedules struct {
	Reconcile string
	Expiry    string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	logger    *slog.Logger
	schedules Schedules
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, schedules Schedules) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		logger:    logger,
		schedules: schedules,
	}
}

// Start registers the jobs and starts the cron scheduler. A job with an
// invalid schedule is logged and left out; the others still run.
func (s *Scheduler) Start() {
	s.register("balance reconciliation", s.schedules.Reconcile, s.jobs.ReconcileBalances)
	s.register("subscription expiry", s.schedules.Expiry, s.jobs.SweepExpirations)
	s.cron.Start()
}

func (s *Scheduler) register(name, schedule string, fn func()) {
	if schedule == "" {
		s.logger.Info("job disabled", "job", name)
		return
	}
	if _, err := s.cron.AddFunc(schedule, fn); err != nil {
		s.logger.Error("failed to schedule "+name+" job", "schedule", schedule, "error", err)
		return
	}
	s.logger.Info("scheduled "+name+" job", "schedule", schedule)
}

// Entries reports how many jobs were registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
