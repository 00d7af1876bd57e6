package http

import (
	"net/http"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/security"
	"lab-inventory-backend/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc reports component name -> healthy.
type HealthFunc func() map[string]bool

type Deps struct {
	Auth         service.AuthService
	Items        service.ItemService
	Borrows      service.BorrowService
	Users        service.UserService
	TokenManager security.TokenManager
	Clock        clock.Clock
	Health       HealthFunc
}

// NewRouter registers every API route. Route names are the keys of
// config.RouteSecurityConfig.
func NewRouter(d Deps) *mux.Router {
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	auth := &authHandler{svc: d.Auth, users: d.Users}
	items := &itemHandler{svc: d.Items}
	borrows := &borrowHandler{svc: d.Borrows}
	export := &exportHandler{items: d.Items, borrows: d.Borrows, clock: d.Clock}

	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(NewAuthMiddleware(d.TokenManager).Handler)

	r.HandleFunc("/healthz", healthHandler(d.Health)).Methods(http.MethodGet).Name("health")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", auth.Register).Methods(http.MethodPost).Name("auth.register")
	api.HandleFunc("/auth/login", auth.Login).Methods(http.MethodPost).Name("auth.login")
	api.HandleFunc("/auth/register-admin", auth.RegisterAdmin).Methods(http.MethodPost).Name("auth.register_admin")
	api.HandleFunc("/auth/me", auth.Me).Methods(http.MethodGet).Name("auth.me")
	api.HandleFunc("/auth/validate-token", auth.ValidateToken).Methods(http.MethodGet).Name("auth.validate_token")
	api.HandleFunc("/users", auth.ListUsers).Methods(http.MethodGet).Name("users.list")

	api.HandleFunc("/items", items.List).Methods(http.MethodGet).Name("items.list")
	api.HandleFunc("/items", items.Create).Methods(http.MethodPost).Name("items.create")
	api.HandleFunc("/items/stats", items.Stats).Methods(http.MethodGet).Name("items.stats")
	api.HandleFunc("/items/{id}", items.Get).Methods(http.MethodGet).Name("items.get")
	api.HandleFunc("/items/{id}", items.Update).Methods(http.MethodPatch).Name("items.update")
	api.HandleFunc("/items/{id}", items.Delete).Methods(http.MethodDelete).Name("items.delete")

	api.HandleFunc("/borrows", borrows.Create).Methods(http.MethodPost).Name("borrows.create")
	api.HandleFunc("/borrows", borrows.List).Methods(http.MethodGet).Name("borrows.list")
	api.HandleFunc("/borrows/my", borrows.List).Methods(http.MethodGet).Name("borrows.mine")
	api.HandleFunc("/borrows/stats", borrows.Stats).Methods(http.MethodGet).Name("borrows.stats")
	api.HandleFunc("/borrows/{id}", borrows.Get).Methods(http.MethodGet).Name("borrows.get")
	api.HandleFunc("/borrows/{id}", borrows.UpdateStatus).Methods(http.MethodPatch).Name("borrows.update")

	api.HandleFunc("/export/items", export.Items).Methods(http.MethodGet).Name("export.items")
	api.HandleFunc("/export/borrows", export.Borrows).Methods(http.MethodGet).Name("export.borrows")

	return r
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]bool{}
		if health != nil {
			components = health()
		}
		code := http.StatusOK
		for _, ok := range components {
			if !ok {
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, components)
	}
}
