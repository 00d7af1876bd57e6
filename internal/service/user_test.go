package service_test

import (
	"context"
	"testing"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := service.NewUserService(f.store.Users())

	t.Run("Profile", func(t *testing.T) {
		u, err := svc.GetProfile(ctx, borrower)
		require.NoError(t, err)
		assert.Equal(t, "Siti", u.Name)

		_, err = svc.GetProfile(ctx, domain.Actor{})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		_, err = svc.GetProfile(ctx, domain.Actor{UserID: "deleted", Role: domain.RoleUser})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		users, total, err := svc.ListUsers(ctx, admin, domain.UserFilter{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, users, 2)

		_, _, err = svc.ListUsers(ctx, borrower, domain.UserFilter{Page: 1, Limit: 10})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("List by role", func(t *testing.T) {
		users, total, err := svc.ListUsers(ctx, admin, domain.UserFilter{Role: domain.RoleUser})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, users, 1)
		assert.Equal(t, "Siti", users[0].Name)

		users, _, err = svc.ListUsers(ctx, admin, domain.UserFilter{Role: domain.RoleAdmin})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, domain.RoleAdmin, users[0].Role)

		_, _, err = svc.ListUsers(ctx, admin, domain.UserFilter{Role: "guru"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
