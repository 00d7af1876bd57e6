package domain

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Class        string    `json:"class,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Actor is the already-authenticated caller of a borrow operation.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// UserFilter narrows user listings. An empty Role means any.
type UserFilter struct {
	Role  Role
	Page  int
	Limit int
}
