package service

import (
	"context"
	"fmt"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/repository"
)

// Hydrator turns reference-only borrow records into BorrowDetails. Repositories
// never do this implicitly; callers that need names ask for it here.
type Hydrator struct {
	users repository.UserRepository
	items repository.ItemRepository
	clock clock.Clock
}

func NewHydrator(users repository.UserRepository, items repository.ItemRepository, c clock.Clock) *Hydrator {
	return &Hydrator{users: users, items: items, clock: c}
}

func (h *Hydrator) Hydrate(ctx context.Context, rec domain.BorrowRecord) (*domain.BorrowDetails, error) {
	user, err := h.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load borrower %s: %w", rec.UserID, err)
	}

	items, err := h.items.FindByIDs(ctx, rec.ItemIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load items for %s: %w", rec.Code, err)
	}
	byID := make(map[string]domain.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	now := h.clock.Now()
	d := &domain.BorrowDetails{
		Record:   rec,
		User:     *user,
		Items:    make([]domain.BorrowedItem, 0, len(rec.Items)),
		IsLate:   rec.IsLate(now),
		Duration: rec.Duration(now),
	}
	for _, li := range rec.Items {
		it, ok := byID[li.ItemID]
		if !ok {
			// Deleted items keep their line so the history stays whole.
			it = domain.Item{ID: li.ItemID}
		}
		d.Items = append(d.Items, domain.BorrowedItem{Item: it, Condition: li.Condition, Notes: li.Notes})
	}

	if rec.ApprovedBy != nil {
		approver, err := h.users.GetByID(ctx, *rec.ApprovedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to load approver %s: %w", *rec.ApprovedBy, err)
		}
		d.Approver = approver
	}
	return d, nil
}
