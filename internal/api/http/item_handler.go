package http

import (
	"net/http"
	"strconv"

	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/service"

	"github.com/gorilla/mux"
)

type itemHandler struct {
	svc service.ItemService
}

type itemRequest struct {
	Name           string               `json:"name"`
	Category       domain.ItemCategory  `json:"category"`
	Condition      domain.ItemCondition `json:"condition,omitempty"`
	Location       domain.ItemLocation  `json:"location"`
	Notes          string               `json:"notes,omitempty"`
	Specifications map[string]string    `json:"specifications,omitempty"`
	PurchaseInfo   *domain.PurchaseInfo `json:"purchase_info,omitempty"`
	Images         []string             `json:"images,omitempty"`
}

func (req itemRequest) toDomain() *domain.Item {
	return &domain.Item{
		Name:           req.Name,
		Category:       req.Category,
		Condition:      req.Condition,
		Location:       req.Location,
		Notes:          req.Notes,
		Specifications: req.Specifications,
		PurchaseInfo:   req.PurchaseInfo,
		Images:         req.Images,
	}
}

func (h *itemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, total, err := h.svc.ListItems(r.Context(), domain.ItemFilter{
		Category: domain.ItemCategory(q.Get("category")),
		Status:   domain.ItemStatus(q.Get("status")),
		Location: domain.ItemLocation(q.Get("location")),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total)
}

func (h *itemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetItem(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *itemHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req itemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item := req.toDomain()
	if err := h.svc.CreateItem(r.Context(), actor, item); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Update changes descriptive fields; condition in the body is ignored.
func (h *itemHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req itemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item := req.toDomain()
	item.ID = mux.Vars(r)["id"]
	updated, err := h.svc.UpdateItemDetails(r.Context(), actor, item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *itemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	if err := h.svc.DeleteItem(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *itemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	stats, err := h.svc.ItemStats(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func pagination(r *http.Request) (page, limit int, err error) {
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, domain.NewValidationError("page", "must be a positive integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 {
			return 0, 0, domain.NewValidationError("limit", "must be a positive integer")
		}
	}
	return page, limit, nil
}
