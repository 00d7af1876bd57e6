package http

import (
	"bytes"
	"fmt"
	"net/http"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/export"
	"lab-inventory-backend/internal/service"
)

const exportPageSize = 100

// eachPage calls fetch for pages 1..n until every row of total has been seen.
func eachPage(fetch func(page int) (n, total int, err error)) error {
	seen := 0
	for page := 1; ; page++ {
		n, total, err := fetch(page)
		if err != nil {
			return err
		}
		seen += n
		if n == 0 || seen >= total {
			return nil
		}
	}
}

type exportHandler struct {
	items   service.ItemService
	borrows service.BorrowService
	clock   clock.Clock
}

func (h *exportHandler) Items(w http.ResponseWriter, r *http.Request) {
	var items []domain.Item
	err := eachPage(func(page int) (int, int, error) {
		batch, total, err := h.items.ListItems(r.Context(), domain.ItemFilter{Page: page, Limit: exportPageSize})
		items = append(items, batch...)
		return len(batch), total, err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteItems(&buf, items); err != nil {
		writeError(w, r, err)
		return
	}
	h.send(w, "Inventory", &buf)
}

func (h *exportHandler) Borrows(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var borrows []domain.BorrowDetails
	err := eachPage(func(page int) (int, int, error) {
		batch, total, err := h.borrows.ListBorrows(r.Context(), actor, domain.BorrowFilter{Page: page, Limit: exportPageSize})
		borrows = append(borrows, batch...)
		return len(batch), total, err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteBorrows(&buf, borrows); err != nil {
		writeError(w, r, err)
		return
	}
	h.send(w, "Peminjaman", &buf)
}

func (h *exportHandler) send(w http.ResponseWriter, prefix string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(prefix, h.clock.Now())))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
