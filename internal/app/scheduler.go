/**
 * @description
 * Cron scheduler setup for the scheduled sweeps.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron              *cron.Cron
	jobs              *Jobs
	logger            *slog.Logger
	reconcileSchedule string
	notifySchedule    string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, reconcileSchedule, notifySchedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:              c,
		jobs:              jobs,
		logger:            logger,
		reconcileSchedule: reconcileSchedule,
		notifySchedule:    notifySchedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.reconcileSchedule, s.jobs.RunReconcileSweep); err != nil {
		s.logger.Error("failed to schedule reconciliation sweep", "error", err)
	} else {
		s.logger.Info("scheduled reconciliation sweep", "schedule", s.reconcileSchedule)
	}

	if _, err := s.cron.AddFunc(s.notifySchedule, s.jobs.RunNotificationSweep); err != nil {
		s.logger.Error("failed to schedule notification sweep", "error", err)
	} else {
		s.logger.Info("scheduled notification sweep", "schedule", s.notifySchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
