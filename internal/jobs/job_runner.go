package jobs

import (
	"context"
	"fmt"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/lock"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/metrics"
	"lab-inventory-backend/internal/repository"
	"lab-inventory-backend/internal/service"
)

// Pass names, also accepted by cmd/cronjob -run-once.
const (
	PassDueReminders = "due-reminders"
	PassMarkOverdue  = "mark-overdue"
)

// PassResult aggregates one scheduler pass.
type PassResult struct {
	Matched   int
	Succeeded int
	Failed    int
	Skipped   bool
}

type Options struct {
	PassTimeout time.Duration
	LockTTL     time.Duration
}

// JobRunner coordinates the scheduled borrow passes
type JobRunner struct {
	borrows   repository.BorrowRepository
	borrowSvc service.BorrowService
	notifier  service.Notifier
	clock     clock.Clock
	locker    lock.Locker
	opts      Options
}

// NewJobRunner creates a job runner. A nil locker means passes are only
// serialized within this process.
func NewJobRunner(
	borrows repository.BorrowRepository,
	borrowSvc service.BorrowService,
	notifier service.Notifier,
	c clock.Clock,
	locker lock.Locker,
	opts Options,
) *JobRunner {
	if locker == nil {
		locker = lock.NewLocal()
	}
	if opts.PassTimeout <= 0 {
		opts.PassTimeout = 5 * time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * opts.PassTimeout
	}
	return &JobRunner{
		borrows:   borrows,
		borrowSvc: borrowSvc,
		notifier:  notifier,
		clock:     c,
		locker:    locker,
		opts:      opts,
	}
}

// runWithRecovery wraps a pass with locking, a timeout, panic recovery and
// one summary log line.
func (jr *JobRunner) runWithRecovery(ctx context.Context, jobName string, jobFunc func(context.Context) (PassResult, error)) (res PassResult) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			outcome = "panic"
		}
		metrics.ObserveSchedulerPass(jobName, outcome, time.Since(start))
	}()

	unlock, ok, err := jr.locker.TryLock(ctx, jobName, jr.opts.LockTTL)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "Job lock unavailable, running without it", "job", jobName, "error", err)
	case !ok:
		logger.Info("Job skipped, another run holds the lock", "job", jobName)
		outcome = "skipped"
		return PassResult{Skipped: true}
	default:
		defer func() {
			if err := unlock(context.Background()); err != nil {
				logger.Warn("Failed to release job lock", "job", jobName, "error", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, jr.opts.PassTimeout)
	defer cancel()

	logger.Info("Starting job", "job", jobName)
	res, err = jobFunc(ctx)
	if err != nil {
		outcome = "error"
		logger.Error("Job failed", "job", jobName, "error", err,
			"matched", res.Matched, "succeeded", res.Succeeded, "failed", res.Failed, "duration", time.Since(start))
		return res
	}

	metrics.ObserveSchedulerRecords(jobName, "succeeded", res.Succeeded)
	metrics.ObserveSchedulerRecords(jobName, "failed", res.Failed)
	logger.Info("Job completed", "job", jobName,
		"matched", res.Matched, "succeeded", res.Succeeded, "failed", res.Failed, "duration", time.Since(start))
	return res
}

// Run executes the named pass once.
func (jr *JobRunner) Run(ctx context.Context, pass string) (PassResult, error) {
	switch pass {
	case PassDueReminders:
		return jr.SendDueDateReminders(ctx), nil
	case PassMarkOverdue:
		return jr.MarkOverdueBorrows(ctx), nil
	}
	return PassResult{}, fmt.Errorf("unknown pass %q", pass)
}

// RunAll runs both passes (for manual execution)
func (jr *JobRunner) RunAll(ctx context.Context) {
	jr.SendDueDateReminders(ctx)
	jr.MarkOverdueBorrows(ctx)
}
