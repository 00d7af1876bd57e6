package app

import (
	"context"
	"testing"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/config"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/lock"
	"lab-inventory-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memoryConfig = `
server:
  port: 8080
database:
  driver: memory
jwt:
  secret: 0123456789abcdef0123456789abcdef
mail:
  admin_email: admin@lab.sch.id
bootstrap:
  admin_name: Pak Budi
  admin_email: Admin@Lab.sch.id
  admin_password: rahasia123
`

func TestNew_MemoryStore(t *testing.T) {
	cfg, err := config.Parse([]byte(memoryConfig))
	require.NoError(t, err)

	ctx := context.Background()
	c := clock.NewFixed(clock.Date(2024, 1, 10, 9, 0))
	a, err := New(ctx, cfg, c)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Redis)

	admin, err := a.Users.GetByEmail(ctx, "admin@lab.sch.id")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)

	token, user, err := a.AuthSvc.Login(ctx, "admin@lab.sch.id", "rahasia123")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, user.ID)
	claims, err := a.TokenManager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	assert.Equal(t, map[string]bool{"dispatcher": false}, a.Health(nil))
	a.Dispatcher.Start(ctx)
	assert.Equal(t, map[string]bool{"dispatcher": true, "scheduler": true}, a.Health(func() bool { return true }))

	// the whole chain works end to end on the memory store
	actor := domain.Actor{UserID: admin.ID, Role: domain.RoleAdmin}
	item := &domain.Item{Name: "Laptop", Category: domain.CategoryHardware, Location: domain.LocationLab1}
	require.NoError(t, a.ItemSvc.CreateItem(ctx, actor, item))
	rec, err := a.BorrowSvc.CreateBorrow(ctx, actor, service.CreateBorrowRequest{
		Items:   []domain.LineItem{{ItemID: item.ID}},
		DueDate: clock.Date(2024, 1, 9, 23, 0).Add(48 * time.Hour),
		Purpose: "Demo",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowStatusPending, rec.Status)

	require.NoError(t, a.Dispatcher.Stop(ctx))
}

func TestNew_BootstrapIsIdempotent(t *testing.T) {
	cfg, err := config.Parse([]byte(memoryConfig))
	require.NoError(t, err)
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	_, err = a.AuthSvc.EnsureAdmin(context.Background(), "Again", "admin@lab.sch.id", "rahasia123")
	assert.NoError(t, err)
}

func TestNewLocker(t *testing.T) {
	cfg, err := config.Parse([]byte(memoryConfig))
	require.NoError(t, err)

	a := &App{Config: cfg}
	_, isLocal := a.newLocker(context.Background()).(*lock.Local)
	assert.True(t, isLocal)

	cfg.Redis.Addr = "127.0.0.1:1"
	l := a.newLocker(context.Background())
	_, isRedis := l.(*lock.RedisLocker)
	assert.True(t, isRedis, "unreachable redis is still used so passes fall back per run")
	require.NotNil(t, a.Redis)
	assert.NoError(t, a.Close())
}
