package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apihttp "lab-inventory-backend/internal/api/http"
	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/export"
	"lab-inventory-backend/internal/repository/memory"
	"lab-inventory-backend/internal/security"
	"lab-inventory-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type discardNotifier struct{}

func (discardNotifier) Notify(domain.NotificationEvent) {}

func (discardNotifier) NotifyWait(context.Context, domain.NotificationEvent) error { return nil }

type testAPI struct {
	t          *testing.T
	handler    http.Handler
	store      *memory.Store
	clock      *clock.Fixed
	adminToken string
	userToken  string
	healthy    map[string]bool
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	c := clock.NewFixed(clock.Date(2024, 1, 10, 9, 0))
	store := memory.NewStore(c)
	tm := security.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)

	gate := service.NewAvailabilityGate(store.Items())
	hydrator := service.NewHydrator(store.Users(), store.Items(), c)
	api := &testAPI{t: t, store: store, clock: c, healthy: map[string]bool{"scheduler": true, "dispatcher": true}}
	api.handler = apihttp.NewRouter(apihttp.Deps{
		Auth:         service.NewAuthService(store.Users(), tm),
		Items:        service.NewItemService(store.Items(), c),
		Borrows:      service.NewBorrowService(store.Borrows(), gate, hydrator, discardNotifier{}, c),
		Users:        service.NewUserService(store.Users()),
		TokenManager: tm,
		Clock:        c,
		Health:       func() map[string]bool { return api.healthy },
	})

	ctx := context.Background()
	adminUser := &domain.User{ID: "admin-1", Name: "Pak Budi", Email: "admin@lab.sch.id", Role: domain.RoleAdmin}
	user := &domain.User{ID: "user-1", Name: "Siti", Email: "siti@lab.sch.id", Class: "XI RPL 1", Role: domain.RoleUser}
	require.NoError(t, store.Users().Create(ctx, adminUser))
	require.NoError(t, store.Users().Create(ctx, user))

	var err error
	api.adminToken, err = tm.GenerateAccessToken(adminUser)
	require.NoError(t, err)
	api.userToken, err = tm.GenerateAccessToken(user)
	require.NoError(t, err)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.Items().Create(ctx, &domain.Item{
			ID: id, Code: "ITM-" + id, Name: "Item " + id,
			Category: domain.CategoryHardware, Condition: domain.ConditionGood,
			Status: domain.ItemStatusAvailable, Location: domain.LocationLab1,
		}))
	}
	return api
}

type response struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Total   *int            `json:"total"`
}

func (a *testAPI) do(method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"scheduler":true,"dispatcher":true}`, string(resp.Data))

	api.healthy["dispatcher"] = false
	rec, _ = api.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "labinventory_http_requests_total")
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.do(http.MethodPost, "/api/auth/register", "", service.RegisterRequest{
		Name: "Andi", Email: "andi@lab.sch.id", Class: "X TKJ 2", Password: "rahasia1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var user domain.User
	require.NoError(t, json.Unmarshal(resp.Data, &user))
	assert.Equal(t, domain.RoleUser, user.Role)

	rec, resp = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "andi@lab.sch.id", "password": "rahasia1"})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	assert.NotEmpty(t, login.Token)

	rec, _ = api.do(http.MethodGet, "/api/items", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "andi@lab.sch.id", "password": "salah123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", resp.Status)

	rec, _ = api.do(http.MethodPost, "/api/auth/register", "", map[string]any{"name": "X", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	t.Run("Register admin", func(t *testing.T) {
		rec, resp := api.do(http.MethodPost, "/api/auth/register-admin", api.adminToken, service.RegisterRequest{
			Name: "Bu Ani", Email: "ani@lab.sch.id", Password: "rahasia1",
		})
		require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
		var created domain.User
		require.NoError(t, json.Unmarshal(resp.Data, &created))
		assert.Equal(t, domain.RoleAdmin, created.Role)
	})

	t.Run("Validate token", func(t *testing.T) {
		rec, resp := api.do(http.MethodGet, "/api/auth/validate-token", login.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, resp.Message)
		var body struct {
			Valid bool        `json:"valid"`
			User  domain.User `json:"user"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &body))
		assert.True(t, body.Valid)
		assert.Equal(t, "andi@lab.sch.id", body.User.Email)

		rec, _ = api.do(http.MethodGet, "/api/auth/validate-token", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		// A signed token whose user no longer exists.
		tm := security.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
		ghost, err := tm.GenerateAccessToken(&domain.User{ID: "ghost", Email: "ghost@lab.sch.id", Role: domain.RoleUser})
		require.NoError(t, err)
		rec, _ = api.do(http.MethodGet, "/api/auth/validate-token", ghost, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.do(http.MethodGet, "/api/auth/me", api.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me domain.User
	require.NoError(t, json.Unmarshal(resp.Data, &me))
	assert.Equal(t, "siti@lab.sch.id", me.Email)
	assert.NotContains(t, string(resp.Data), "password")

	rec, _ = api.do(http.MethodGet, "/api/users", api.userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp = api.do(http.MethodGet, "/api/users?limit=1", api.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, *resp.Total)
	var users []domain.User
	require.NoError(t, json.Unmarshal(resp.Data, &users))
	assert.Len(t, users, 1)

	rec, resp = api.do(http.MethodGet, "/api/users?role=admin", api.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *resp.Total)
	require.NoError(t, json.Unmarshal(resp.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "admin-1", users[0].ID)

	rec, _ = api.do(http.MethodGet, "/api/users?role=guru", api.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"No token", http.MethodGet, "/api/borrows/my", "", http.StatusUnauthorized},
		{"Garbage token", http.MethodGet, "/api/borrows/my", "not-a-jwt", http.StatusUnauthorized},
		{"Anonymous lists items", http.MethodGet, "/api/items", "", http.StatusOK},
		{"Anonymous reads an item", http.MethodGet, "/api/items/a", "", http.StatusOK},
		{"Anonymous item stats", http.MethodGet, "/api/items/stats", "", http.StatusUnauthorized},
		{"Anonymous deletes item", http.MethodDelete, "/api/items/a", "", http.StatusUnauthorized},
		{"User reads items", http.MethodGet, "/api/items", api.userToken, http.StatusOK},
		{"User creates item", http.MethodPost, "/api/items", api.userToken, http.StatusForbidden},
		{"User deletes item", http.MethodDelete, "/api/items/a", api.userToken, http.StatusForbidden},
		{"User registers admin", http.MethodPost, "/api/auth/register-admin", api.userToken, http.StatusForbidden},
		{"User lists all borrows", http.MethodGet, "/api/borrows", api.userToken, http.StatusForbidden},
		{"User exports", http.MethodGet, "/api/export/items", api.userToken, http.StatusForbidden},
		{"User reads own borrows", http.MethodGet, "/api/borrows/my", api.userToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := api.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestItemEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.do(http.MethodPost, "/api/items", api.adminToken, map[string]string{
		"name": "Oscilloscope", "category": string(domain.CategoryLabEquipment), "location": string(domain.LocationLab2),
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var item domain.Item
	require.NoError(t, json.Unmarshal(resp.Data, &item))
	assert.Equal(t, domain.ItemStatusAvailable, item.Status)
	assert.Equal(t, domain.ConditionGood, item.Condition)

	rec, resp = api.do(http.MethodPatch, "/api/items/"+item.ID, api.adminToken, map[string]string{
		"name": "Oscilloscope 2CH", "category": string(domain.CategoryLabEquipment), "location": string(domain.LocationWarehouse),
	})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	require.NoError(t, json.Unmarshal(resp.Data, &item))
	assert.Equal(t, domain.LocationWarehouse, item.Location)

	rec, resp = api.do(http.MethodGet, "/api/items?location=Gudang&limit=5", api.userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 1, *resp.Total)

	rec, _ = api.do(http.MethodGet, "/api/items?page=0", api.userToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/items/missing", api.userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/items", api.adminToken, map[string]string{"name": "X", "category": "Furniture", "location": "Lab 1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("Purchase details round trip", func(t *testing.T) {
		api.clock.Advance(time.Second)
		rec, resp := api.do(http.MethodPost, "/api/items", api.adminToken, map[string]any{
			"name": "Laptop Asus", "category": string(domain.CategoryHardware), "location": string(domain.LocationLab1),
			"specifications": map[string]string{"cpu": "i5"},
			"purchase_info":  map[string]any{"price": 8500000, "date": "2023-07-01T00:00:00+07:00", "warranty": "2025-07-01T00:00:00+07:00"},
			"images":         []string{"https://cdn.example/laptop.jpg"},
		})
		require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
		var laptop domain.Item
		require.NoError(t, json.Unmarshal(resp.Data, &laptop))

		rec, resp = api.do(http.MethodGet, "/api/items/"+laptop.ID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got domain.Item
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, "i5", got.Specifications["cpu"])
		require.NotNil(t, got.PurchaseInfo)
		assert.Equal(t, 8500000.0, got.PurchaseInfo.Price)
		assert.Equal(t, []string{"https://cdn.example/laptop.jpg"}, got.Images)
	})

	t.Run("Stats", func(t *testing.T) {
		rec, resp := api.do(http.MethodGet, "/api/items/stats", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, resp.Message)
		var stats domain.ItemStats
		require.NoError(t, json.Unmarshal(resp.Data, &stats))
		assert.Equal(t, 4, stats.Overall.TotalItems)
		assert.Equal(t, 8500000.0, stats.Overall.TotalValue)
	})

	t.Run("Delete", func(t *testing.T) {
		rec, _ := api.do(http.MethodDelete, "/api/items/"+item.ID, api.adminToken, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec, _ = api.do(http.MethodGet, "/api/items/"+item.ID, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec, _ = api.do(http.MethodDelete, "/api/items/"+item.ID, api.adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBorrowEndpoints(t *testing.T) {
	api := newTestAPI(t)
	due := clock.Date(2024, 1, 12, 15, 0)

	rec, resp := api.do(http.MethodPost, "/api/borrows", api.userToken, map[string]any{
		"items":    []map[string]string{{"item_id": "a"}, {"item_id": "b", "notes": "dengan kabel"}},
		"due_date": due,
		"purpose":  "Praktikum jaringan",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var created domain.BorrowRecord
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, domain.BorrowStatusPending, created.Status)

	t.Run("Item already borrowed", func(t *testing.T) {
		rec, resp := api.do(http.MethodPost, "/api/borrows", api.userToken, map[string]any{
			"items": []map[string]string{{"item_id": "a"}}, "due_date": due, "purpose": "Lagi",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, resp.Message, "Item a")
	})

	t.Run("Own listing", func(t *testing.T) {
		rec, resp := api.do(http.MethodGet, "/api/borrows/my?status=pending", api.userToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []domain.BorrowDetails
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		require.Len(t, list, 1)
		assert.Equal(t, "Siti", list[0].User.Name)
		assert.Len(t, list[0].Items, 2)
	})

	t.Run("Bad filter", func(t *testing.T) {
		rec, _ := api.do(http.MethodGet, "/api/borrows?status=lost", api.adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec, _ = api.do(http.MethodGet, "/api/borrows?from=10-01-2024", api.adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Date range", func(t *testing.T) {
		rec, resp := api.do(http.MethodGet, "/api/borrows?from=2024-01-10&to=2024-01-10", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, *resp.Total)
		rec, resp = api.do(http.MethodGet, "/api/borrows?from=2024-01-11", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, *resp.Total)
	})

	t.Run("Borrowed item cannot be deleted", func(t *testing.T) {
		rec, resp := api.do(http.MethodDelete, "/api/items/a", api.adminToken, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, resp.Message, "Item a")
	})

	t.Run("Status flow", func(t *testing.T) {
		path := "/api/borrows/" + created.ID

		rec, resp := api.do(http.MethodPatch, path, api.adminToken, map[string]string{"status": ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code, resp.Message)
		rec, _ = api.do(http.MethodPatch, path, api.adminToken, map[string]string{"status": "lost"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, _ = api.do(http.MethodPatch, path, api.userToken, map[string]string{"status": "approved"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec, resp = api.do(http.MethodPatch, path, api.adminToken, map[string]string{"status": "approved"})
		require.Equal(t, http.StatusOK, rec.Code, resp.Message)

		rec, _ = api.do(http.MethodPatch, path, api.adminToken, map[string]string{"status": "overdue"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec, _ = api.do(http.MethodPatch, path, api.adminToken, map[string]string{"status": "borrowed"})
		require.Equal(t, http.StatusOK, rec.Code)

		rec, resp = api.do(http.MethodPatch, path, api.adminToken, map[string]string{
			"status": "returned", "return_condition": string(domain.ConditionLightDamage),
		})
		require.Equal(t, http.StatusOK, rec.Code, resp.Message)

		rec, resp = api.do(http.MethodGet, path, api.userToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var details domain.BorrowDetails
		require.NoError(t, json.Unmarshal(resp.Data, &details))
		assert.Equal(t, domain.BorrowStatusReturned, details.Record.Status)
		require.NotNil(t, details.Approver)
		assert.Equal(t, "admin-1", details.Approver.ID)

		it, err := api.store.Items().GetByID(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, domain.ItemStatusAvailable, it.Status)
		assert.Equal(t, domain.ConditionLightDamage, it.Condition)
	})

	t.Run("Stats", func(t *testing.T) {
		rec, resp := api.do(http.MethodGet, "/api/borrows/stats", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var stats domain.BorrowStats
		require.NoError(t, json.Unmarshal(resp.Data, &stats))
		assert.Zero(t, stats.Overdue)
	})

	t.Run("Unknown borrow", func(t *testing.T) {
		rec, _ := api.do(http.MethodGet, "/api/borrows/nope", api.adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestExportEndpoints(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(http.MethodGet, "/api/export/items", api.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=Inventory_2024-01-10.xlsx", rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.ItemsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	rec, _ = api.do(http.MethodGet, "/api/export/borrows", api.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Peminjaman_2024-01-10.xlsx")
}
