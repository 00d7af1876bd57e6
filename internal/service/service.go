package service

import (
	"context"
	"time"

	"lab-inventory-backend/internal/domain"
)

// Notifier accepts notification events. Notify never blocks and never
// reports delivery errors back. NotifyWait waits for queue room until ctx
// ends and reports whether the event was accepted.
type Notifier interface {
	Notify(event domain.NotificationEvent)
	NotifyWait(ctx context.Context, event domain.NotificationEvent) error
}

type CreateBorrowRequest struct {
	Items   []domain.LineItem `json:"items"`
	DueDate time.Time         `json:"due_date"`
	Purpose string            `json:"purpose"`
}

type UpdateStatusRequest struct {
	Status          domain.BorrowStatus `json:"status"`
	ReturnCondition domain.ItemCondition `json:"return_condition,omitempty"`
	ReturnNotes     string              `json:"return_notes,omitempty"`
	// ItemConditions overrides ReturnCondition for individual items.
	ItemConditions map[string]domain.ItemCondition `json:"item_conditions,omitempty"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Class    string `json:"class"`
	Password string `json:"password"`
}

type BorrowService interface {
	CreateBorrow(ctx context.Context, actor domain.Actor, req CreateBorrowRequest) (*domain.BorrowRecord, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, borrowID string, req UpdateStatusRequest) (*domain.BorrowRecord, error)
	// MarkOverdue is the automatic borrowed -> overdue transition. If the
	// overdue notification cannot be queued the saved record is returned
	// together with the error.
	MarkOverdue(ctx context.Context, borrowID string) (*domain.BorrowRecord, error)
	GetBorrow(ctx context.Context, actor domain.Actor, borrowID string) (*domain.BorrowDetails, error)
	ListBorrows(ctx context.Context, actor domain.Actor, filter domain.BorrowFilter) ([]domain.BorrowDetails, int, error)
	Stats(ctx context.Context, actor domain.Actor) (*domain.BorrowStats, error)
}

type ItemService interface {
	CreateItem(ctx context.Context, actor domain.Actor, item *domain.Item) error
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, int, error)
	UpdateItemDetails(ctx context.Context, actor domain.Actor, item *domain.Item) (*domain.Item, error)
	// DeleteItem refuses with a ConflictError while an active borrow holds the item.
	DeleteItem(ctx context.Context, actor domain.Actor, id string) error
	ItemStats(ctx context.Context, actor domain.Actor) (*domain.ItemStats, error)
}

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	RegisterAdmin(ctx context.Context, actor domain.Actor, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, error)
}

type UserService interface {
	GetProfile(ctx context.Context, actor domain.Actor) (*domain.User, error)
	ListUsers(ctx context.Context, actor domain.Actor, filter domain.UserFilter) ([]domain.User, int, error)
}
