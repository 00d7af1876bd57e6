package service

import (
	"context"
	"strings"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/repository"

	"github.com/google/uuid"
)

type itemService struct {
	itemRepo repository.ItemRepository
	clock    clock.Clock
}

func NewItemService(itemRepo repository.ItemRepository, c clock.Clock) ItemService {
	return &itemService{itemRepo: itemRepo, clock: c}
}

func (s *itemService) CreateItem(ctx context.Context, actor domain.Actor, item *domain.Item) error {
	logger.EnterMethod("itemService.CreateItem", "name", item.Name)
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := validateItem(item); err != nil {
		return err
	}
	if item.Condition == "" {
		item.Condition = domain.ConditionGood
	}
	if !item.Condition.Valid() {
		return domain.NewValidationError("condition", "unknown condition "+string(item.Condition))
	}

	item.ID = uuid.NewString()
	item.Code = domain.GenerateItemCode(s.clock.Now())
	item.Status = domain.ItemStatusAvailable
	item.CreatedBy = actor.UserID
	item.UpdatedBy = actor.UserID

	if err := s.itemRepo.Create(ctx, item); err != nil {
		logger.ExitMethodWithError("itemService.CreateItem", err)
		return err
	}
	logger.ExitMethod("itemService.CreateItem", "itemID", item.ID, "code", item.Code)
	return nil
}

func (s *itemService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.itemRepo.GetByID(ctx, id)
}

func (s *itemService) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, int, error) {
	return s.itemRepo.List(ctx, filter)
}

// UpdateItemDetails changes descriptive fields only; status and condition
// belong to the availability gate.
func (s *itemService) UpdateItemDetails(ctx context.Context, actor domain.Actor, item *domain.Item) (*domain.Item, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	item.UpdatedBy = actor.UserID
	if err := s.itemRepo.UpdateDetails(ctx, item); err != nil {
		return nil, err
	}
	return s.itemRepo.GetByID(ctx, item.ID)
}

func (s *itemService) DeleteItem(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.itemRepo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("Item deleted", "itemID", id, "by", actor.UserID)
	return nil
}

func (s *itemService) ItemStats(ctx context.Context, actor domain.Actor) (*domain.ItemStats, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.itemRepo.Stats(ctx)
}

func validateItem(item *domain.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return domain.NewValidationError("name", "is required")
	}
	if !item.Category.Valid() {
		return domain.NewValidationError("category", "unknown category "+string(item.Category))
	}
	if !item.Location.Valid() {
		return domain.NewValidationError("location", "unknown location "+string(item.Location))
	}
	for k := range item.Specifications {
		if strings.TrimSpace(k) == "" {
			return domain.NewValidationError("specifications", "keys must not be empty")
		}
	}
	for _, img := range item.Images {
		if strings.TrimSpace(img) == "" {
			return domain.NewValidationError("images", "entries must not be empty")
		}
	}
	if p := item.PurchaseInfo; p != nil {
		if p.Price < 0 {
			return domain.NewValidationError("purchase_info.price", "must not be negative")
		}
		if !p.Date.IsZero() && !p.Warranty.IsZero() && p.Warranty.Before(p.Date) {
			return domain.NewValidationError("purchase_info.warranty", "ends before the purchase date")
		}
	}
	return nil
}
