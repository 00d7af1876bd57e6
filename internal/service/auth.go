package service

import (
	"context"
	"errors"
	"strings"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/repository"
	"lab-inventory-backend/internal/security"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

const minPasswordLength = 6

type authService struct {
	userRepo repository.UserRepository
	tokens   security.TokenManager
}

func NewAuthService(userRepo repository.UserRepository, tokens security.TokenManager) AuthService {
	return &authService{userRepo: userRepo, tokens: tokens}
}

// Register always creates a regular user. Admins come from bootstrap or
// from RegisterAdmin.
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if err := normalizeRegistration(&req); err != nil {
		return nil, err
	}
	return s.create(ctx, req, domain.RoleUser)
}

func (s *authService) RegisterAdmin(ctx context.Context, actor domain.Actor, req RegisterRequest) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := normalizeRegistration(&req); err != nil {
		return nil, err
	}
	user, err := s.create(ctx, req, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	logger.Info("Admin registered", "userID", user.ID, "by", actor.UserID)
	return user, nil
}

func normalizeRegistration(req *RegisterRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" {
		return domain.NewValidationError("name", "is required")
	}
	if !strings.Contains(req.Email, "@") {
		return domain.NewValidationError("email", "is not a valid address")
	}
	if len(req.Password) < minPasswordLength {
		return domain.NewValidationError("password", "must be at least 6 characters")
	}
	return nil
}

func (s *authService) create(ctx context.Context, req RegisterRequest, role domain.Role) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Class:        req.Class,
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// EnsureAdmin creates the bootstrap admin unless the email is already taken.
func (s *authService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			logger.Warn("Bootstrap admin email belongs to a regular user", "email", email)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	user, err := s.create(ctx, RegisterRequest{Name: name, Email: strings.ToLower(email), Password: password}, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	logger.Info("Bootstrap admin created", "email", user.Email)
	return user, nil
}
