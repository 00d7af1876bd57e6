package http

import (
	"net/http"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/service"

	"github.com/gorilla/mux"
)

const dateLayout = "2006-01-02"

type borrowHandler struct {
	svc service.BorrowService
}

func (h *borrowHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req service.CreateBorrowRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.svc.CreateBorrow(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// List serves both the admin listing and /borrows/my, which always narrows
// to the caller.
func (h *borrowHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	filter, err := borrowFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if routeName(r) == "borrows.mine" {
		filter.UserID = actor.UserID
	}
	borrows, total, err := h.svc.ListBorrows(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, borrows, total)
}

func (h *borrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	details, err := h.svc.GetBorrow(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *borrowHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req service.UpdateStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.svc.UpdateStatus(r.Context(), actor, mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *borrowHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	stats, err := h.svc.Stats(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// borrowFilter reads status, from and to (WIB dates, both inclusive), page and limit.
func borrowFilter(r *http.Request) (domain.BorrowFilter, error) {
	q := r.URL.Query()
	var f domain.BorrowFilter

	if v := q.Get("status"); v != "" {
		st, err := domain.ParseBorrowStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if v := q.Get("from"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, clock.WIB)
		if err != nil {
			return f, domain.NewValidationError("from", "expected YYYY-MM-DD")
		}
		f.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, clock.WIB)
		if err != nil {
			return f, domain.NewValidationError("to", "expected YYYY-MM-DD")
		}
		end := clock.EndOfDay(d).Add(-time.Microsecond)
		f.To = &end
	}

	page, limit, err := pagination(r)
	if err != nil {
		return f, err
	}
	f.Page, f.Limit = page, limit
	return f, nil
}
