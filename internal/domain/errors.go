package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")

	// ErrStaleRecord is returned by stores when a compare-and-set on the
	// borrow status finds a different status than expected.
	ErrStaleRecord = errors.New("record changed concurrently")
	// ErrDuplicateCode is returned by stores when a borrow code is taken.
	ErrDuplicateCode = errors.New("duplicate borrow code")
)

type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Kind string
	IDs  []string
}

func NewNotFoundError(kind string, ids ...string) *NotFoundError {
	return &NotFoundError{Kind: kind, IDs: ids}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, strings.Join(e.IDs, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports the items that blocked a reservation or a delete.
type ConflictError struct {
	Items []Item
}

func (e *ConflictError) Error() string {
	names := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		names = append(names, fmt.Sprintf("%s (%s)", it.Name, it.Status))
	}
	return "items not available: " + strings.Join(names, ", ")
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type InvalidTransitionError struct {
	From   BorrowStatus
	To     BorrowStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot change borrow status from %q to %q", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }
