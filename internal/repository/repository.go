package repository

import (
	"context"
	"time"

	"lab-inventory-backend/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)
}

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.Item, error)
	List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, int, error)
	UpdateDetails(ctx context.Context, item *domain.Item) error

	// Delete removes an item that is not Borrowed. Returns
	// *domain.NotFoundError, or *domain.ConflictError while a borrow holds it.
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*domain.ItemStats, error)

	// ReserveAll marks every id Borrowed if and only if all of them exist and
	// are Available. Returns *domain.NotFoundError or *domain.ConflictError and
	// leaves every item untouched otherwise.
	ReserveAll(ctx context.Context, ids []string) error

	// ReleaseAll sets every item in conditions back to Available with its
	// condition; an empty condition keeps the current one. Either every item
	// is updated or none: an unknown id gives *domain.NotFoundError.
	ReleaseAll(ctx context.Context, conditions map[string]domain.ItemCondition) error
}

// BorrowRepository returns reference-only records; hydration is the
// caller's choice (see service.Hydrator).
type BorrowRepository interface {
	// Create returns domain.ErrDuplicateCode if the borrow code is taken.
	Create(ctx context.Context, b *domain.BorrowRecord) error
	GetByID(ctx context.Context, id string) (*domain.BorrowRecord, error)

	// ListByStatusAndDueRange returns borrows in status with from <= due < to.
	// A zero from means no lower bound.
	ListByStatusAndDueRange(ctx context.Context, status domain.BorrowStatus, from, to time.Time) ([]domain.BorrowRecord, error)

	// Save persists b only if the stored status still equals expected,
	// otherwise returns domain.ErrStaleRecord.
	Save(ctx context.Context, b *domain.BorrowRecord, expected domain.BorrowStatus) error

	List(ctx context.Context, filter domain.BorrowFilter) ([]domain.BorrowRecord, int, error)
	CountByStatus(ctx context.Context) ([]domain.StatusCount, error)
}
