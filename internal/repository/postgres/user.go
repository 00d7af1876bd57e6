package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/repository"
)

type userRepository struct {
	db    *sql.DB
	clock clock.Clock
}

func NewUserRepository(db *sql.DB, c clock.Clock) repository.UserRepository {
	if c == nil {
		c = clock.New()
	}
	return &userRepository{db: db, clock: c}
}

const userColumns = `id, name, email, COALESCE(phone, ''), COALESCE(class, ''), role, password_hash, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (id, name, email, phone, class, role, password_hash, created_at, updated_at)
	          VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8, $9)`
	now := r.clock.Now().In(wib)
	u.CreatedAt = now
	u.UpdatedAt = now

	logger.DatabaseCall("INSERT", "users", "user_id", u.ID)
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Name, u.Email, u.Phone, u.Class, u.Role, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "table", "users")
	if isUniqueViolation(err) {
		return domain.NewValidationError("email", "already registered")
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("user", id)
	}
	return u, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("user", email)
	}
	return u, err
}

func (r *userRepository) List(ctx context.Context, f domain.UserFilter) ([]domain.User, int, error) {
	where := ``
	var args []any
	if f.Role != "" {
		args = append(args, f.Role)
		where = ` WHERE role = $1`
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(f.Page, f.Limit)
	query := `SELECT ` + userColumns + ` FROM users` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, count, rows.Err()
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Class, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.In(wib)
	u.UpdatedAt = u.UpdatedAt.In(wib)
	return u, nil
}
