package jobs

import (
	"context"
	"errors"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
)

// SendDueDateReminders sends one reminder for every borrowed record due
// today (WIB). Status is not changed.
func (jr *JobRunner) SendDueDateReminders(ctx context.Context) PassResult {
	return jr.runWithRecovery(ctx, PassDueReminders, func(ctx context.Context) (PassResult, error) {
		start, end := clock.Today(jr.clock)

		records, err := jr.borrows.ListByStatusAndDueRange(ctx, domain.BorrowStatusBorrowed, start, end)
		if err != nil {
			return PassResult{}, err
		}

		res := PassResult{Matched: len(records)}
		for _, rec := range records {
			if err := jr.remind(ctx, rec); err != nil {
				res.Failed++
				logger.Error("Failed to queue due reminder", "borrowCode", rec.Code, "error", err)
				continue
			}
			res.Succeeded++
		}
		return res, nil
	})
}

// remind waits for room in the notification queue, so a burst larger than
// the queue is delivered instead of dropped.
func (jr *JobRunner) remind(ctx context.Context, rec domain.BorrowRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Due reminder panicked", "borrowCode", rec.Code, "panic", r)
			err = errors.New("panic while queueing due reminder")
		}
	}()
	if err := jr.notifier.NotifyWait(ctx, domain.NotificationEvent{Kind: domain.NotificationDueReminder, Record: rec}); err != nil {
		return err
	}
	logger.Debug("Due reminder queued", "borrowCode", rec.Code, "dueDate", rec.DueDate)
	return nil
}

// MarkOverdueBorrows moves every borrowed record past its due date to overdue
// through the borrow state machine. Records already overdue are not matched.
func (jr *JobRunner) MarkOverdueBorrows(ctx context.Context) PassResult {
	return jr.runWithRecovery(ctx, PassMarkOverdue, func(ctx context.Context) (PassResult, error) {
		records, err := jr.borrows.ListByStatusAndDueRange(ctx, domain.BorrowStatusBorrowed, time.Time{}, jr.clock.Now())
		if err != nil {
			return PassResult{}, err
		}

		res := PassResult{Matched: len(records)}
		for _, rec := range records {
			if ctx.Err() != nil {
				res.Failed += res.Matched - res.Succeeded - res.Failed
				return res, ctx.Err()
			}
			if err := jr.markOverdue(ctx, rec); err != nil {
				res.Failed++
				if errors.Is(err, domain.ErrInvalidTransition) {
					logger.Info("Borrow changed before it could be marked overdue", "borrowCode", rec.Code, "error", err)
					continue
				}
				logger.Error("Failed to mark borrow overdue", "borrowCode", rec.Code, "error", err)
				continue
			}
			res.Succeeded++
		}
		return res, nil
	})
}

func (jr *JobRunner) markOverdue(ctx context.Context, rec domain.BorrowRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Mark overdue panicked", "borrowCode", rec.Code, "panic", r)
			err = errors.New("panic while marking overdue")
		}
	}()
	_, err = jr.borrowSvc.MarkOverdue(ctx, rec.ID)
	return err
}
