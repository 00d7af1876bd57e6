// Package memory is a process-local store used by tests and the "memory"
// database driver. A single mutex serializes every operation, which gives the
// same all-or-nothing reservation and compare-and-set guarantees as the
// postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
)

type Store struct {
	mu      sync.Mutex
	clock   clock.Clock
	users   map[string]domain.User
	items   map[string]domain.Item
	borrows map[string]*domain.BorrowRecord
	codes   map[string]string
}

func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.New()
	}
	return &Store{
		clock:   c,
		users:   make(map[string]domain.User),
		items:   make(map[string]domain.Item),
		borrows: make(map[string]*domain.BorrowRecord),
		codes:   make(map[string]string),
	}
}

// Users, Items and Borrows expose the store through the repository
// interfaces. Method names overlap between them, so Store cannot embed all three.
func (s *Store) Users() *UserRepository     { return &UserRepository{s} }
func (s *Store) Items() *ItemRepository     { return &ItemRepository{s} }
func (s *Store) Borrows() *BorrowRepository { return &BorrowRepository{s} }

type UserRepository struct{ s *Store }

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u.Email = strings.ToLower(u.Email)
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return domain.NewValidationError("email", "already registered")
		}
	}
	now := r.s.clock.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.NewNotFoundError("user", id)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.NewNotFoundError("user", email)
}

func (r *UserRepository) List(ctx context.Context, f domain.UserFilter) ([]domain.User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	all := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Email < all[j].Email
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, f.Page, f.Limit), len(all), nil
}

type ItemRepository struct{ s *Store }

func (r *ItemRepository) Create(ctx context.Context, it *domain.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.items {
		if existing.Code == it.Code {
			return domain.NewValidationError("code", "already in use")
		}
	}
	now := r.s.clock.Now()
	it.CreatedAt = now
	it.UpdatedAt = now
	r.s.items[it.ID] = cloneItem(*it)
	return nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	it, ok := r.s.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("item", id)
	}
	it = cloneItem(it)
	return &it, nil
}

func (r *ItemRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.Item
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if it, ok := r.s.items[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, cloneItem(it))
		}
	}
	return out, nil
}

func (r *ItemRepository) List(ctx context.Context, f domain.ItemFilter) ([]domain.Item, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []domain.Item
	for _, it := range r.s.items {
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.Status != "" && it.Status != f.Status {
			continue
		}
		if f.Location != "" && it.Location != f.Location {
			continue
		}
		matched = append(matched, cloneItem(it))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, f.Page, f.Limit), len(matched), nil
}

func (r *ItemRepository) UpdateDetails(ctx context.Context, it *domain.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.items[it.ID]
	if !ok {
		return domain.NewNotFoundError("item", it.ID)
	}
	cur.Name = it.Name
	cur.Category = it.Category
	cur.Location = it.Location
	cur.Notes = it.Notes
	cur.Specifications = it.Specifications
	cur.PurchaseInfo = it.PurchaseInfo
	cur.Images = it.Images
	cur.UpdatedBy = it.UpdatedBy
	cur.UpdatedAt = r.s.clock.Now()
	r.s.items[it.ID] = cloneItem(cur)
	*it = cloneItem(cur)
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	it, ok := r.s.items[id]
	if !ok {
		return domain.NewNotFoundError("item", id)
	}
	if it.Status == domain.ItemStatusBorrowed {
		return &domain.ConflictError{Items: []domain.Item{cloneItem(it)}}
	}
	delete(r.s.items, id)
	return nil
}

func (r *ItemRepository) Stats(ctx context.Context) (*domain.ItemStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stats := &domain.ItemStats{}
	byCategory := make(map[domain.ItemCategory]*domain.CategoryStats)
	byCondition := make(map[domain.ItemCondition]int)
	priced := 0
	for _, it := range r.s.items {
		stats.Overall.TotalItems++
		byCondition[it.Condition]++
		cs, ok := byCategory[it.Category]
		if !ok {
			cs = &domain.CategoryStats{Category: it.Category}
			byCategory[it.Category] = cs
		}
		cs.Count++

		if it.PurchaseInfo == nil {
			continue
		}
		price := it.PurchaseInfo.Price
		cs.TotalValue += price
		stats.Overall.TotalValue += price
		if priced == 0 || price < stats.Overall.MinValue {
			stats.Overall.MinValue = price
		}
		if priced == 0 || price > stats.Overall.MaxValue {
			stats.Overall.MaxValue = price
		}
		priced++
	}
	if priced > 0 {
		stats.Overall.AvgValue = stats.Overall.TotalValue / float64(priced)
	}

	for _, cs := range byCategory {
		stats.ByCategory = append(stats.ByCategory, *cs)
	}
	sort.Slice(stats.ByCategory, func(i, j int) bool { return stats.ByCategory[i].Category < stats.ByCategory[j].Category })
	for c, n := range byCondition {
		stats.ByCondition = append(stats.ByCondition, domain.ConditionCount{Condition: c, Count: n})
	}
	sort.Slice(stats.ByCondition, func(i, j int) bool { return stats.ByCondition[i].Condition < stats.ByCondition[j].Condition })
	return stats, nil
}

func (r *ItemRepository) ReserveAll(ctx context.Context, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var missing []string
	var unavailable []domain.Item
	for _, id := range ids {
		it, ok := r.s.items[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case it.Status != domain.ItemStatusAvailable:
			unavailable = append(unavailable, cloneItem(it))
		}
	}
	if len(missing) > 0 {
		return domain.NewNotFoundError("item", missing...)
	}
	if len(unavailable) > 0 {
		return &domain.ConflictError{Items: unavailable}
	}

	now := r.s.clock.Now()
	for _, id := range ids {
		it := r.s.items[id]
		it.Status = domain.ItemStatusBorrowed
		it.UpdatedAt = now
		r.s.items[id] = it
	}
	return nil
}

func (r *ItemRepository) ReleaseAll(ctx context.Context, conditions map[string]domain.ItemCondition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var missing []string
	for id := range conditions {
		if _, ok := r.s.items[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.NewNotFoundError("item", missing...)
	}

	now := r.s.clock.Now()
	for id, condition := range conditions {
		it := r.s.items[id]
		it.Status = domain.ItemStatusAvailable
		if condition != "" {
			it.Condition = condition
		}
		it.UpdatedAt = now
		r.s.items[id] = it
	}
	return nil
}

// cloneItem detaches the reference fields so callers cannot mutate stored items.
func cloneItem(it domain.Item) domain.Item {
	if it.Specifications != nil {
		specs := make(map[string]string, len(it.Specifications))
		for k, v := range it.Specifications {
			specs[k] = v
		}
		it.Specifications = specs
	}
	if it.PurchaseInfo != nil {
		p := *it.PurchaseInfo
		it.PurchaseInfo = &p
	}
	if it.Images != nil {
		it.Images = append([]string(nil), it.Images...)
	}
	return it
}

type BorrowRepository struct{ s *Store }

func (r *BorrowRepository) Create(ctx context.Context, b *domain.BorrowRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.codes[b.Code]; taken {
		return domain.ErrDuplicateCode
	}
	now := r.s.clock.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	r.s.borrows[b.ID] = b.Clone()
	r.s.codes[b.Code] = b.ID
	return nil
}

func (r *BorrowRepository) GetByID(ctx context.Context, id string) (*domain.BorrowRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.borrows[id]
	if !ok {
		return nil, domain.NewNotFoundError("borrow", id)
	}
	return b.Clone(), nil
}

func (r *BorrowRepository) ListByStatusAndDueRange(ctx context.Context, status domain.BorrowStatus, from, to time.Time) ([]domain.BorrowRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []domain.BorrowRecord
	for _, b := range r.s.borrows {
		if b.Status != status || !b.DueDate.Before(to) {
			continue
		}
		if !from.IsZero() && b.DueDate.Before(from) {
			continue
		}
		out = append(out, *b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (r *BorrowRepository) Save(ctx context.Context, b *domain.BorrowRecord, expected domain.BorrowStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.borrows[b.ID]
	if !ok {
		return domain.NewNotFoundError("borrow", b.ID)
	}
	if cur.Status != expected {
		return domain.ErrStaleRecord
	}
	b.UpdatedAt = r.s.clock.Now()
	r.s.borrows[b.ID] = b.Clone()
	return nil
}

func (r *BorrowRepository) List(ctx context.Context, f domain.BorrowFilter) ([]domain.BorrowRecord, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []domain.BorrowRecord
	for _, b := range r.s.borrows {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		if f.From != nil && b.BorrowDate.Before(*f.From) {
			continue
		}
		if f.To != nil && b.BorrowDate.After(*f.To) {
			continue
		}
		matched = append(matched, *b.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Code > matched[j].Code
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, f.Page, f.Limit), len(matched), nil
}

func (r *BorrowRepository) CountByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byStatus := make(map[domain.BorrowStatus]*domain.StatusCount)
	for _, b := range r.s.borrows {
		sc, ok := byStatus[b.Status]
		if !ok {
			sc = &domain.StatusCount{Status: b.Status}
			byStatus[b.Status] = sc
		}
		sc.Count++
		sc.Items += len(b.Items)
	}
	var out []domain.StatusCount
	for _, sc := range byStatus {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func paginate[T any](all []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
