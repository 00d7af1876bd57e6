package service

import (
	"context"
	"errors"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/metrics"
	"lab-inventory-backend/internal/repository"
)

// AvailabilityGate is the only writer of item status and condition.
type AvailabilityGate struct {
	items repository.ItemRepository
}

func NewAvailabilityGate(items repository.ItemRepository) *AvailabilityGate {
	return &AvailabilityGate{items: items}
}

// Reserve marks every item Borrowed, or none of them. Unknown ids give a
// *domain.NotFoundError, unavailable items a *domain.ConflictError.
func (g *AvailabilityGate) Reserve(ctx context.Context, itemIDs []string) error {
	ids := dedupe(itemIDs)
	if len(ids) == 0 {
		return domain.NewValidationError("items", "at least one item is required")
	}

	err := g.items.ReserveAll(ctx, ids)
	switch {
	case err == nil:
		metrics.ObserveReservation("success")
	case errors.Is(err, domain.ErrConflict):
		metrics.ObserveReservation("conflict")
	case errors.Is(err, domain.ErrNotFound):
		metrics.ObserveReservation("not_found")
	default:
		metrics.ObserveReservation("error")
	}
	return err
}

// Release sets the items back to Available with the given condition per item,
// in one atomic store call. An empty condition keeps the item's current
// condition. Nothing changes if any id is unknown or the store fails.
func (g *AvailabilityGate) Release(ctx context.Context, conditions map[string]domain.ItemCondition) error {
	if len(conditions) == 0 {
		return nil
	}
	for _, c := range conditions {
		if c != "" && !c.Valid() {
			return domain.NewValidationError("condition", "unknown condition "+string(c))
		}
	}

	if err := g.items.ReleaseAll(ctx, conditions); err != nil {
		logger.Error("Failed to release items", "items", len(conditions), "error", err)
		return err
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
