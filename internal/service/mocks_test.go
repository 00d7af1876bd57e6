package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/repository"
	"lab-inventory-backend/internal/repository/memory"
	"lab-inventory-backend/internal/service"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBorrowRepo
type MockBorrowRepo struct {
	mock.Mock
}

func (m *MockBorrowRepo) Create(ctx context.Context, b *domain.BorrowRecord) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}
func (m *MockBorrowRepo) GetByID(ctx context.Context, id string) (*domain.BorrowRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BorrowRecord).Clone(), args.Error(1)
}
func (m *MockBorrowRepo) ListByStatusAndDueRange(ctx context.Context, status domain.BorrowStatus, from, to time.Time) ([]domain.BorrowRecord, error) {
	args := m.Called(ctx, status, from, to)
	return args.Get(0).([]domain.BorrowRecord), args.Error(1)
}
func (m *MockBorrowRepo) Save(ctx context.Context, b *domain.BorrowRecord, expected domain.BorrowStatus) error {
	args := m.Called(ctx, b, expected)
	return args.Error(0)
}
func (m *MockBorrowRepo) List(ctx context.Context, filter domain.BorrowFilter) ([]domain.BorrowRecord, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.BorrowRecord), args.Int(1), args.Error(2)
}
func (m *MockBorrowRepo) CountByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.StatusCount), args.Error(1)
}

var _ repository.BorrowRepository = (*MockBorrowRepo)(nil)

// recordingNotifier keeps every event it is handed.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (n *recordingNotifier) Notify(e domain.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) NotifyWait(_ context.Context, e domain.NotificationEvent) error {
	n.Notify(e)
	return nil
}

func (n *recordingNotifier) Events() []domain.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.NotificationEvent(nil), n.events...)
}

var (
	admin    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	borrower = domain.Actor{UserID: "user-1", Role: domain.RoleUser}
)

type fixture struct {
	store    *memory.Store
	clock    *clock.Fixed
	notifier *recordingNotifier
	gate     *service.AvailabilityGate
	hydrator *service.Hydrator
	borrows  service.BorrowService
}

// newFixture builds the borrow service over the memory store with the clock
// pinned at 2024-01-10 09:00 WIB and items a, b, c available.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.NewFixed(clock.Date(2024, 1, 10, 9, 0)),
		notifier: &recordingNotifier{},
	}
	f.store = memory.NewStore(f.clock)
	f.gate = service.NewAvailabilityGate(f.store.Items())
	f.hydrator = service.NewHydrator(f.store.Users(), f.store.Items(), f.clock)
	f.borrows = service.NewBorrowService(f.store.Borrows(), f.gate, f.hydrator, f.notifier, f.clock)

	ctx := context.Background()
	require.NoError(t, f.store.Users().Create(ctx, &domain.User{ID: admin.UserID, Name: "Pak Budi", Email: "admin@lab.sch.id", Role: domain.RoleAdmin}))
	require.NoError(t, f.store.Users().Create(ctx, &domain.User{ID: borrower.UserID, Name: "Siti", Email: "siti@lab.sch.id", Role: domain.RoleUser}))
	for _, id := range []string{"a", "b", "c"} {
		f.addItem(t, id, domain.ItemStatusAvailable)
	}
	return f
}

func (f *fixture) addItem(t *testing.T, id string, status domain.ItemStatus) {
	t.Helper()
	require.NoError(t, f.store.Items().Create(context.Background(), &domain.Item{
		ID:        id,
		Code:      "ITM-" + id,
		Name:      "Item " + id,
		Category:  domain.CategoryHardware,
		Condition: domain.ConditionGood,
		Status:    status,
		Location:  domain.LocationLab1,
	}))
}

func (f *fixture) item(t *testing.T, id string) *domain.Item {
	t.Helper()
	it, err := f.store.Items().GetByID(context.Background(), id)
	require.NoError(t, err)
	return it
}

func (f *fixture) create(t *testing.T, ids ...string) *domain.BorrowRecord {
	t.Helper()
	var lines []domain.LineItem
	for _, id := range ids {
		lines = append(lines, domain.LineItem{ItemID: id})
	}
	rec, err := f.borrows.CreateBorrow(context.Background(), borrower, service.CreateBorrowRequest{
		Items:   lines,
		DueDate: clock.Date(2024, 1, 12, 15, 0),
		Purpose: "Praktikum jaringan",
	})
	require.NoError(t, err)
	return rec
}

// force moves a stored record into status without going through the service.
func (f *fixture) force(t *testing.T, rec *domain.BorrowRecord, status domain.BorrowStatus) *domain.BorrowRecord {
	t.Helper()
	ctx := context.Background()
	cur, err := f.store.Borrows().GetByID(ctx, rec.ID)
	require.NoError(t, err)
	from := cur.Status
	cur.Status = status
	require.NoError(t, f.store.Borrows().Save(ctx, cur, from))
	return cur
}
