package service_test

import (
	"context"
	"testing"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/service"
	"lab-inventory-backend/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := service.NewItemService(f.store.Items(), f.clock)

	t.Run("Create", func(t *testing.T) {
		item := &domain.Item{Name: " Arduino Uno ", Category: domain.CategoryDevelopmentTool, Location: domain.LocationLab2}
		require.NoError(t, svc.CreateItem(ctx, admin, item))

		assert.NotEmpty(t, item.ID)
		assert.Equal(t, domain.GenerateItemCode(f.clock.Now()), item.Code)
		assert.Equal(t, "Arduino Uno", item.Name)
		assert.Equal(t, domain.ItemStatusAvailable, item.Status)
		assert.Equal(t, domain.ConditionGood, item.Condition)
		assert.Equal(t, admin.UserID, item.CreatedBy)
	})

	t.Run("Create forbidden and invalid", func(t *testing.T) {
		err := svc.CreateItem(ctx, borrower, &domain.Item{Name: "X", Category: domain.CategoryHardware, Location: domain.LocationLab1})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		err = svc.CreateItem(ctx, admin, &domain.Item{Name: "X", Category: "Furniture", Location: domain.LocationLab1})
		assert.ErrorIs(t, err, domain.ErrValidation)

		err = svc.CreateItem(ctx, admin, &domain.Item{Name: "X", Category: domain.CategoryHardware, Location: "Kantin"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Update keeps gate owned fields", func(t *testing.T) {
		f.create(t, "a")

		got, err := svc.UpdateItemDetails(ctx, admin, &domain.Item{
			ID:        "a",
			Name:      "Laptop Lab",
			Category:  domain.CategoryHardware,
			Location:  domain.LocationWarehouse,
			Status:    domain.ItemStatusAvailable,
			Condition: domain.ConditionHeavyDamage,
		})
		require.NoError(t, err)
		assert.Equal(t, "Laptop Lab", got.Name)
		assert.Equal(t, domain.LocationWarehouse, got.Location)
		assert.Equal(t, domain.ItemStatusBorrowed, got.Status)
		assert.Equal(t, domain.ConditionGood, got.Condition)
	})

	t.Run("List filters", func(t *testing.T) {
		items, total, err := svc.ListItems(ctx, domain.ItemFilter{Status: domain.ItemStatusAvailable})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, items, 3)
	})

	t.Run("Purchase details", func(t *testing.T) {
		f.clock.Advance(time.Second)
		bought := clock.Date(2023, 7, 1, 10, 0)
		item := &domain.Item{
			Name:           "Laptop Asus",
			Category:       domain.CategoryHardware,
			Location:       domain.LocationLab1,
			Specifications: map[string]string{"cpu": "i5", "ram": "8GB"},
			PurchaseInfo:   &domain.PurchaseInfo{Price: 8500000, Date: bought, Warranty: bought.AddDate(2, 0, 0)},
			Images:         []string{"https://cdn.example/laptop.jpg"},
		}
		require.NoError(t, svc.CreateItem(ctx, admin, item))

		got, err := svc.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "8GB", got.Specifications["ram"])
		require.NotNil(t, got.PurchaseInfo)
		assert.Equal(t, 8500000.0, got.PurchaseInfo.Price)
		assert.Equal(t, []string{"https://cdn.example/laptop.jpg"}, got.Images)

		bad := []*domain.Item{
			{Name: "X", Category: domain.CategoryHardware, Location: domain.LocationLab1, PurchaseInfo: &domain.PurchaseInfo{Price: -1}},
			{Name: "X", Category: domain.CategoryHardware, Location: domain.LocationLab1, PurchaseInfo: &domain.PurchaseInfo{Price: 1, Date: bought, Warranty: bought.AddDate(0, -1, 0)}},
			{Name: "X", Category: domain.CategoryHardware, Location: domain.LocationLab1, Specifications: map[string]string{" ": "v"}},
			{Name: "X", Category: domain.CategoryHardware, Location: domain.LocationLab1, Images: []string{""}},
		}
		for _, it := range bad {
			assert.ErrorIs(t, svc.CreateItem(ctx, admin, it), domain.ErrValidation)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := svc.ItemStats(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.Overall.TotalItems)
		assert.Equal(t, 8500000.0, stats.Overall.TotalValue)
		assert.Equal(t, 8500000.0, stats.Overall.AvgValue)
		assert.Equal(t, []domain.CategoryStats{
			{Category: domain.CategoryDevelopmentTool, Count: 1},
			{Category: domain.CategoryHardware, Count: 4, TotalValue: 8500000},
		}, stats.ByCategory)
		assert.Equal(t, []domain.ConditionCount{{Condition: domain.ConditionGood, Count: 5}}, stats.ByCondition)

		_, err = svc.ItemStats(ctx, borrower)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeleteItem(ctx, borrower, "c"), domain.ErrForbidden)

		err := svc.DeleteItem(ctx, admin, "a")
		assert.ErrorIs(t, err, domain.ErrConflict, "item a is held by an active borrow")
		_, err = svc.GetItem(ctx, "a")
		assert.NoError(t, err)

		require.NoError(t, svc.DeleteItem(ctx, admin, "c"))
		_, err = svc.GetItem(ctx, "c")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.ErrorIs(t, svc.DeleteItem(ctx, admin, "c"), domain.ErrNotFound)
	})
}

func TestAuthService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tokens := security.NewTokenManager("0123456789abcdef0123456789abcdef", 0)
	svc := service.NewAuthService(f.store.Users(), tokens)

	t.Run("Register always creates a user", func(t *testing.T) {
		u, err := svc.Register(ctx, service.RegisterRequest{Name: "Rina", Email: "Rina@Lab.sch.id", Class: "XII TKJ", Password: "rahasia1"})
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, u.Role)
		assert.Equal(t, "rina@lab.sch.id", u.Email)
		assert.NotEqual(t, "rahasia1", u.PasswordHash)

		_, err = svc.Register(ctx, service.RegisterRequest{Name: "Rina", Email: "rina@lab.sch.id", Password: "rahasia1"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Register validation", func(t *testing.T) {
		_, err := svc.Register(ctx, service.RegisterRequest{Name: "A", Email: "nope", Password: "rahasia1"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = svc.Register(ctx, service.RegisterRequest{Name: "A", Email: "a@b.c", Password: "123"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Login", func(t *testing.T) {
		token, u, err := svc.Login(ctx, "rina@lab.sch.id", "rahasia1")
		require.NoError(t, err)
		claims, err := tokens.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, u.ID, claims.UserID)
		assert.Equal(t, domain.RoleUser, claims.Role)

		_, _, err = svc.Login(ctx, "rina@lab.sch.id", "salah")
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
		_, _, err = svc.Login(ctx, "ghost@lab.sch.id", "rahasia1")
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})

	t.Run("RegisterAdmin", func(t *testing.T) {
		req := service.RegisterRequest{Name: "Bu Ani", Email: "ani@lab.sch.id", Password: "rahasia1"}
		_, err := svc.RegisterAdmin(ctx, borrower, req)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		u, err := svc.RegisterAdmin(ctx, admin, req)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, u.Role)

		_, err = svc.RegisterAdmin(ctx, admin, service.RegisterRequest{Name: "B", Email: "nope", Password: "rahasia1"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("EnsureAdmin is idempotent", func(t *testing.T) {
		first, err := svc.EnsureAdmin(ctx, "Kepala Lab", "kalab@lab.sch.id", "adminpass")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, first.Role)

		second, err := svc.EnsureAdmin(ctx, "Kepala Lab", "kalab@lab.sch.id", "adminpass")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})
}
