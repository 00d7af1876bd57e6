package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/repository"

	"github.com/lib/pq"
)

type itemRepository struct {
	db    *sql.DB
	clock clock.Clock
}

func NewItemRepository(db *sql.DB, c clock.Clock) repository.ItemRepository {
	if c == nil {
		c = clock.New()
	}
	return &itemRepository{db: db, clock: c}
}

const itemColumns = `id, code, name, category, specifications, condition, status, location,
	purchase_price, purchase_date, warranty_until, images, COALESCE(notes, ''),
	created_by, updated_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var (
		it       domain.Item
		specs    []byte
		price    sql.NullFloat64
		bought   sql.NullTime
		warranty sql.NullTime
	)
	err := row.Scan(&it.ID, &it.Code, &it.Name, &it.Category, &specs, &it.Condition, &it.Status, &it.Location,
		&price, &bought, &warranty, pq.Array(&it.Images), &it.Notes,
		&it.CreatedBy, &it.UpdatedBy, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &it.Specifications); err != nil {
			return nil, fmt.Errorf("item %s specifications: %w", it.ID, err)
		}
	}
	if price.Valid {
		it.PurchaseInfo = &domain.PurchaseInfo{
			Price:    price.Float64,
			Date:     bought.Time.In(wib),
			Warranty: warranty.Time.In(wib),
		}
	}
	it.CreatedAt = it.CreatedAt.In(wib)
	it.UpdatedAt = it.UpdatedAt.In(wib)
	return &it, nil
}

// detailArgs converts the optional item fields to column values.
func detailArgs(it *domain.Item) (specs []byte, price sql.NullFloat64, bought, warranty sql.NullTime, images []string, err error) {
	if it.Specifications == nil {
		specs = []byte("{}")
	} else if specs, err = json.Marshal(it.Specifications); err != nil {
		return nil, price, bought, warranty, nil, err
	}
	if p := it.PurchaseInfo; p != nil {
		price = sql.NullFloat64{Float64: p.Price, Valid: true}
		bought = sql.NullTime{Time: p.Date, Valid: !p.Date.IsZero()}
		warranty = sql.NullTime{Time: p.Warranty, Valid: !p.Warranty.IsZero()}
	}
	images = it.Images
	if images == nil {
		images = []string{}
	}
	return specs, price, bought, warranty, images, nil
}

func (r *itemRepository) Create(ctx context.Context, it *domain.Item) error {
	query := `INSERT INTO items (id, code, name, category, specifications, condition, status, location,
	              purchase_price, purchase_date, warranty_until, images, notes, created_by, updated_by, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	specs, price, bought, warranty, images, err := detailArgs(it)
	if err != nil {
		return err
	}
	now := r.clock.Now().In(wib)
	it.CreatedAt = now
	it.UpdatedAt = now

	logger.DatabaseCall("INSERT", "items", "item_id", it.ID)
	_, err = r.db.ExecContext(ctx, query, it.ID, it.Code, it.Name, it.Category, specs, it.Condition, it.Status, it.Location,
		price, bought, warranty, pq.Array(images), it.Notes, it.CreatedBy, it.UpdatedBy, it.CreatedAt, it.UpdatedAt)
	logger.DatabaseResult("INSERT", 1, err, "table", "items")
	if isUniqueViolation(err) {
		return domain.NewValidationError("code", "already in use")
	}
	return err
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("item", id)
	}
	return it, err
}

func (r *itemRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]domain.Item, error) {
	var items []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (r *itemRepository) List(ctx context.Context, f domain.ItemFilter) ([]domain.Item, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Location != "" {
		args = append(args, f.Location)
		where += fmt.Sprintf(" AND location = $%d", len(args))
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM items`+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(f.Page, f.Limit)
	query := `SELECT ` + itemColumns + ` FROM items` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

func (r *itemRepository) UpdateDetails(ctx context.Context, it *domain.Item) error {
	query := `UPDATE items SET name=$1, category=$2, location=$3, notes=$4, specifications=$5,
	              purchase_price=$6, purchase_date=$7, warranty_until=$8, images=$9, updated_by=$10, updated_at=$11
	          WHERE id=$12`
	specs, price, bought, warranty, images, err := detailArgs(it)
	if err != nil {
		return err
	}
	it.UpdatedAt = r.clock.Now().In(wib)
	res, err := r.db.ExecContext(ctx, query, it.Name, it.Category, it.Location, it.Notes, specs,
		price, bought, warranty, pq.Array(images), it.UpdatedBy, it.UpdatedAt, it.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFoundError("item", it.ID)
	}
	return nil
}

// Delete relies on every active borrow holding its items in Borrowed, so a
// single conditional DELETE cannot race with a reservation.
func (r *itemRepository) Delete(ctx context.Context, id string) error {
	logger.DatabaseCall("DELETE", "items", "item_id", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND status <> $2`, id, domain.ItemStatusBorrowed)
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err, "table", "items")
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", n, err, "table", "items")
	if err != nil || n == 1 {
		return err
	}

	it, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return &domain.ConflictError{Items: []domain.Item{*it}}
}

func (r *itemRepository) Stats(ctx context.Context) (*domain.ItemStats, error) {
	stats := &domain.ItemStats{}
	o := &stats.Overall
	err := r.db.QueryRowContext(ctx, `SELECT count(*), COALESCE(sum(purchase_price), 0), COALESCE(avg(purchase_price), 0),
	        COALESCE(min(purchase_price), 0), COALESCE(max(purchase_price), 0) FROM items`).
		Scan(&o.TotalItems, &o.TotalValue, &o.AvgValue, &o.MinValue, &o.MaxValue)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT category, count(*), COALESCE(sum(purchase_price), 0) FROM items GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cs domain.CategoryStats
		if err := rows.Scan(&cs.Category, &cs.Count, &cs.TotalValue); err != nil {
			return nil, err
		}
		stats.ByCategory = append(stats.ByCategory, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	crows, err := r.db.QueryContext(ctx, `SELECT condition, count(*) FROM items GROUP BY condition ORDER BY condition`)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var cc domain.ConditionCount
		if err := crows.Scan(&cc.Condition, &cc.Count); err != nil {
			return nil, err
		}
		stats.ByCondition = append(stats.ByCondition, cc)
	}
	return stats, crows.Err()
}

func (r *itemRepository) ReserveAll(ctx context.Context, ids []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Row locks in id order so overlapping reservations queue instead of deadlocking.
	logger.DatabaseCall("SELECT FOR UPDATE", "items", "ids", ids)
	rows, err := tx.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return err
	}
	locked, err := collectItems(rows)
	rows.Close()
	if err != nil {
		return err
	}

	found := make(map[string]bool, len(locked))
	var unavailable []domain.Item
	for _, it := range locked {
		found[it.ID] = true
		if it.Status != domain.ItemStatusAvailable {
			unavailable = append(unavailable, it)
		}
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return domain.NewNotFoundError("item", missing...)
	}
	if len(unavailable) > 0 {
		return &domain.ConflictError{Items: unavailable}
	}

	res, err := tx.ExecContext(ctx, `UPDATE items SET status = $1, updated_at = $2 WHERE id = ANY($3)`,
		domain.ItemStatusBorrowed, r.clock.Now().In(wib), pq.Array(ids))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, nil, "table", "items", "status", domain.ItemStatusBorrowed)

	return tx.Commit()
}

func (r *itemRepository) ReleaseAll(ctx context.Context, conditions map[string]domain.ItemCondition) error {
	if len(conditions) == 0 {
		return nil
	}
	ids := make([]string, 0, len(conditions))
	for id := range conditions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	conds := make([]string, len(ids))
	for i, id := range ids {
		conds[i] = string(conditions[id])
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	logger.DatabaseCall("SELECT FOR UPDATE", "items", "ids", ids)
	rows, err := tx.QueryContext(ctx, `SELECT id FROM items WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		found[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return domain.NewNotFoundError("item", missing...)
	}

	// One statement for every condition group; an empty condition keeps the stored one.
	query := `UPDATE items AS i SET status = $1, condition = COALESCE(NULLIF(v.condition, ''), i.condition), updated_at = $2
	          FROM unnest($3::text[], $4::text[]) AS v(id, condition) WHERE i.id = v.id`
	res, err := tx.ExecContext(ctx, query, domain.ItemStatusAvailable, r.clock.Now().In(wib), pq.Array(ids), pq.Array(conds))
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "table", "items")
		return err
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, nil, "table", "items", "status", domain.ItemStatusAvailable)

	return tx.Commit()
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
