package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/metrics"
	"lab-inventory-backend/internal/repository"

	"github.com/google/uuid"
)

// codeAttempts bounds retries when a generated borrow code collides.
const codeAttempts = 5

type borrowService struct {
	borrowRepo repository.BorrowRepository
	gate       *AvailabilityGate
	hydrator   *Hydrator
	notifier   Notifier
	clock      clock.Clock
}

func NewBorrowService(
	borrowRepo repository.BorrowRepository,
	gate *AvailabilityGate,
	hydrator *Hydrator,
	notifier Notifier,
	c clock.Clock,
) BorrowService {
	return &borrowService{
		borrowRepo: borrowRepo,
		gate:       gate,
		hydrator:   hydrator,
		notifier:   notifier,
		clock:      c,
	}
}

func (s *borrowService) CreateBorrow(ctx context.Context, actor domain.Actor, req CreateBorrowRequest) (*domain.BorrowRecord, error) {
	logger.EnterMethod("borrowService.CreateBorrow", "userID", actor.UserID, "items", len(req.Items))

	if actor.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		return nil, domain.NewValidationError("purpose", "is required")
	}
	if len(req.Items) == 0 {
		return nil, domain.NewValidationError("items", "at least one item is required")
	}

	now := s.clock.Now()
	due := req.DueDate.In(clock.WIB)
	if !due.After(now) {
		return nil, domain.NewValidationError("due_date", "must be after the borrow date")
	}

	lines := make([]domain.LineItem, 0, len(req.Items))
	seen := make(map[string]bool, len(req.Items))
	for _, li := range req.Items {
		if li.ItemID == "" {
			return nil, domain.NewValidationError("items", "item id is required")
		}
		if seen[li.ItemID] {
			return nil, domain.NewValidationError("items", "item "+li.ItemID+" listed twice")
		}
		seen[li.ItemID] = true
		if li.Condition == "" {
			li.Condition = domain.ConditionGood
		}
		if !li.Condition.Valid() {
			return nil, domain.NewValidationError("condition", "unknown condition "+string(li.Condition))
		}
		lines = append(lines, li)
	}

	rec := &domain.BorrowRecord{
		ID:         uuid.NewString(),
		UserID:     actor.UserID,
		Items:      lines,
		BorrowDate: now,
		DueDate:    due,
		Status:     domain.BorrowStatusPending,
		Purpose:    purpose,
	}

	if err := s.gate.Reserve(ctx, rec.ItemIDs()); err != nil {
		logger.ExitMethodWithError("borrowService.CreateBorrow", err, "userID", actor.UserID)
		return nil, err
	}

	if err := s.insert(ctx, rec, now); err != nil {
		// Nothing was persisted for the borrow, so the reservation is undone.
		if rerr := s.gate.Release(ctx, keepConditions(rec.ItemIDs())); rerr != nil {
			logger.Error("Failed to undo item reservation", "items", rec.ItemIDs(), "error", rerr)
		}
		logger.ExitMethodWithError("borrowService.CreateBorrow", err, "userID", actor.UserID)
		return nil, fmt.Errorf("failed to create borrow: %w", err)
	}

	metrics.ObserveTransition("", string(domain.BorrowStatusPending), domain.TriggerAdmin.String())
	s.notifier.Notify(domain.NotificationEvent{Kind: domain.NotificationNewBorrow, Record: *rec.Clone()})

	logger.ExitMethod("borrowService.CreateBorrow", "borrowCode", rec.Code)
	return rec, nil
}

func (s *borrowService) insert(ctx context.Context, rec *domain.BorrowRecord, now time.Time) error {
	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		rec.Code = domain.GenerateBorrowCode(now.Add(time.Duration(attempt) * time.Millisecond))
		err = s.borrowRepo.Create(ctx, rec)
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return err
		}
		logger.Warn("Borrow code collision, retrying", "code", rec.Code, "attempt", attempt+1)
	}
	return err
}

func (s *borrowService) UpdateStatus(ctx context.Context, actor domain.Actor, borrowID string, req UpdateStatusRequest) (*domain.BorrowRecord, error) {
	logger.EnterMethod("borrowService.UpdateStatus", "borrowID", borrowID, "status", req.Status)

	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	target, err := domain.ParseBorrowStatus(string(req.Status))
	if err != nil {
		return nil, err
	}
	req.Status = target
	rec, err := s.borrowRepo.GetByID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckTransition(rec.Status, req.Status, domain.TriggerAdmin); err != nil {
		return nil, err
	}

	var conditions map[string]domain.ItemCondition
	if req.Status == domain.BorrowStatusReturned {
		if conditions, err = returnConditions(rec, req); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	next, err := s.transition(ctx, rec, req.Status, domain.TriggerAdmin, func(b *domain.BorrowRecord) {
		approver := actor.UserID
		b.ApprovedBy = &approver
		if req.Status == domain.BorrowStatusReturned {
			b.ReturnDate = &now
			b.ReturnCondition = req.ReturnCondition
			b.ReturnNotes = strings.TrimSpace(req.ReturnNotes)
			for i := range b.Items {
				b.Items[i].Condition = conditions[b.Items[i].ItemID]
			}
		}
	})
	if err != nil {
		logger.ExitMethodWithError("borrowService.UpdateStatus", err, "borrowID", borrowID)
		return nil, err
	}
	s.notifier.Notify(domain.NotificationEvent{Kind: domain.NotificationStatusChanged, Record: *next.Clone(), PreviousStatus: rec.Status})

	logger.ExitMethod("borrowService.UpdateStatus", "borrowCode", next.Code, "from", rec.Status, "to", next.Status)
	return next, nil
}

func (s *borrowService) MarkOverdue(ctx context.Context, borrowID string) (*domain.BorrowRecord, error) {
	rec, err := s.borrowRepo.GetByID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if !rec.DueDate.Before(s.clock.Now()) {
		return nil, &domain.InvalidTransitionError{From: rec.Status, To: domain.BorrowStatusOverdue, Reason: "due date has not passed"}
	}
	next, err := s.transition(ctx, rec, domain.BorrowStatusOverdue, domain.TriggerAutomatic, nil)
	if err != nil {
		return nil, err
	}
	event := domain.NotificationEvent{Kind: domain.NotificationOverdue, Record: *next.Clone(), PreviousStatus: rec.Status}
	if err := s.notifier.NotifyWait(ctx, event); err != nil {
		return next, fmt.Errorf("borrow %s is overdue but its notification was not queued: %w", next.Code, err)
	}
	return next, nil
}

// transition validates, persists with compare-and-set on the current status
// and applies the item effects of the target status. Callers notify.
func (s *borrowService) transition(ctx context.Context, rec *domain.BorrowRecord, to domain.BorrowStatus, by domain.Trigger, apply func(*domain.BorrowRecord)) (*domain.BorrowRecord, error) {
	from := rec.Status
	if err := domain.CheckTransition(from, to, by); err != nil {
		return nil, err
	}

	next := rec.Clone()
	next.Status = to
	if apply != nil {
		apply(next)
	}

	if err := s.borrowRepo.Save(ctx, next, from); err != nil {
		if errors.Is(err, domain.ErrStaleRecord) {
			return nil, s.staleTransition(ctx, rec, to)
		}
		return nil, fmt.Errorf("failed to save borrow %s: %w", rec.Code, err)
	}

	if err := s.applyItemEffects(ctx, next); err != nil {
		// Put the record back so it keeps pointing at reserved items.
		if rerr := s.borrowRepo.Save(ctx, rec.Clone(), to); rerr != nil {
			logger.Error("Failed to revert borrow after item release error", "borrowCode", rec.Code, "error", rerr)
		}
		return nil, fmt.Errorf("failed to release items for %s: %w", rec.Code, err)
	}

	metrics.ObserveTransition(string(from), string(to), by.String())
	return next, nil
}

func (s *borrowService) applyItemEffects(ctx context.Context, b *domain.BorrowRecord) error {
	switch b.Status {
	case domain.BorrowStatusRejected:
		return s.gate.Release(ctx, keepConditions(b.ItemIDs()))
	case domain.BorrowStatusReturned:
		conditions := make(map[string]domain.ItemCondition, len(b.Items))
		for _, li := range b.Items {
			conditions[li.ItemID] = li.Condition
		}
		return s.gate.Release(ctx, conditions)
	}
	return nil
}

// staleTransition reports a lost compare-and-set against the status that is
// actually stored now.
func (s *borrowService) staleTransition(ctx context.Context, rec *domain.BorrowRecord, to domain.BorrowStatus) error {
	current := rec.Status
	if fresh, err := s.borrowRepo.GetByID(ctx, rec.ID); err == nil {
		current = fresh.Status
	}
	return &domain.InvalidTransitionError{From: current, To: to, Reason: "record was updated concurrently"}
}

func returnConditions(rec *domain.BorrowRecord, req UpdateStatusRequest) (map[string]domain.ItemCondition, error) {
	if !req.ReturnCondition.Valid() {
		return nil, domain.NewValidationError("return_condition", "must be one of Baik, Rusak Ringan, Rusak Berat")
	}
	conditions := make(map[string]domain.ItemCondition, len(rec.Items))
	for _, id := range rec.ItemIDs() {
		conditions[id] = req.ReturnCondition
	}
	for id, c := range req.ItemConditions {
		if _, ok := conditions[id]; !ok {
			return nil, domain.NewValidationError("item_conditions", "item "+id+" is not part of this borrow")
		}
		if !c.Valid() {
			return nil, domain.NewValidationError("item_conditions", "unknown condition "+string(c))
		}
		conditions[id] = c
	}
	return conditions, nil
}

func keepConditions(ids []string) map[string]domain.ItemCondition {
	m := make(map[string]domain.ItemCondition, len(ids))
	for _, id := range ids {
		m[id] = ""
	}
	return m
}

func (s *borrowService) GetBorrow(ctx context.Context, actor domain.Actor, borrowID string) (*domain.BorrowDetails, error) {
	rec, err := s.borrowRepo.GetByID(ctx, borrowID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && rec.UserID != actor.UserID {
		return nil, domain.ErrForbidden
	}
	return s.hydrator.Hydrate(ctx, *rec)
}

func (s *borrowService) ListBorrows(ctx context.Context, actor domain.Actor, filter domain.BorrowFilter) ([]domain.BorrowDetails, int, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	records, total, err := s.borrowRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.BorrowDetails, 0, len(records))
	for _, rec := range records {
		d, err := s.hydrator.Hydrate(ctx, rec)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, nil
}

func (s *borrowService) Stats(ctx context.Context, actor domain.Actor) (*domain.BorrowStats, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	byStatus, err := s.borrowRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	overdue, err := s.borrowRepo.ListByStatusAndDueRange(ctx, domain.BorrowStatusBorrowed, time.Time{}, now)
	if err != nil {
		return nil, err
	}
	start, end := clock.Today(s.clock)
	dueToday, err := s.borrowRepo.ListByStatusAndDueRange(ctx, domain.BorrowStatusBorrowed, start, end)
	if err != nil {
		return nil, err
	}

	return &domain.BorrowStats{
		ByStatus:    byStatus,
		Overdue:     len(overdue),
		ReturnToday: len(dueToday),
	}, nil
}
