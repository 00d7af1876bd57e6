package service

import (
	"context"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/repository"
)

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetProfile(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	if actor.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.userRepo.GetByID(ctx, actor.UserID)
}

func (s *userService) ListUsers(ctx context.Context, actor domain.Actor, filter domain.UserFilter) ([]domain.User, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, domain.ErrForbidden
	}
	if filter.Role != "" && filter.Role != domain.RoleAdmin && filter.Role != domain.RoleUser {
		return nil, 0, domain.NewValidationError("role", "must be admin or user")
	}
	return s.userRepo.List(ctx, filter)
}
