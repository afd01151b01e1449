/**
 * @description
 * Scheduled job implementations: the periodic reconciliation sweep and the
 * daily notification sweep. Both delegate to the Service's sweep methods,
 * which hold the distributed lease themselves, so a cron fire overlapping an
 * operator trigger degrades to a logged no-op.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	service *Service
	logger  *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(service *Service, logger *slog.Logger) *Jobs {
	return &Jobs{
		service: service,
		logger:  logger,
	}
}

// RunReconcileSweep expires overdue charges and polls the gateway for the
// rest.
func (j *Jobs) RunReconcileSweep() {
	j.logger.Info("starting reconciliation sweep job")
	ctx := context.Background()

	summary, err := j.service.ReconcileSweep(ctx)
	if err != nil {
		if errors.Is(err, ErrSweepAlreadyRunning) {
			j.logger.Info("reconciliation sweep already running; skipping")
			return
		}
		j.logger.Error("reconciliation sweep failed", "error", err)
		return
	}

	j.logger.Info("reconciliation sweep job finished",
		"checked", summary.Checked,
		"approved", summary.Approved,
		"expired", summary.Expired,
		"failed", summary.Failed,
	)
}

// RunNotificationSweep fires the due-date reminders for every account.
func (j *Jobs) RunNotificationSweep() {
	j.logger.Info("starting notification sweep job")
	ctx := context.Background()

	summary, err := j.service.RunNotificationSweep(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrSweepAlreadyRunning) {
			j.logger.Info("notification sweep already running; skipping")
			return
		}
		j.logger.Error("notification sweep failed", "error", err)
		return
	}

	j.logger.Info("notification sweep job finished",
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
}
