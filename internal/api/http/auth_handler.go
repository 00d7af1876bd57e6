package http

import (
	"errors"
	"net/http"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/service"
)

type authHandler struct {
	svc   service.AuthService
	users service.UserService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *authHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req service.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.svc.RegisterAdmin(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	user, err := h.users.GetProfile(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ValidateToken answers whether the bearer token still belongs to a user.
// The middleware has already checked the signature and expiry.
func (h *authHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	user, err := h.users.GetProfile(r.Context(), actor)
	if errors.Is(err, domain.ErrNotFound) {
		err = domain.ErrUnauthorized
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": user})
}

func (h *authHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	page, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, total, err := h.users.ListUsers(r.Context(), actor, domain.UserFilter{
		Role:  domain.Role(r.URL.Query().Get("role")),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, users, total)
}
