package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/logger"
	"lab-inventory-backend/internal/repository"

	"github.com/lib/pq"
)

type borrowRepository struct {
	db    *sql.DB
	clock clock.Clock
}

func NewBorrowRepository(db *sql.DB, c clock.Clock) repository.BorrowRepository {
	if c == nil {
		c = clock.New()
	}
	return &borrowRepository{db: db, clock: c}
}

const borrowColumns = `id, borrow_code, user_id, borrow_date, due_date, status, approved_by, return_date, return_condition, return_notes, purpose, created_at, updated_at`

func scanBorrow(row rowScanner) (*domain.BorrowRecord, error) {
	var (
		b               domain.BorrowRecord
		approvedBy      sql.NullString
		returnDate      sql.NullTime
		returnCondition sql.NullString
		returnNotes     sql.NullString
	)
	err := row.Scan(&b.ID, &b.Code, &b.UserID, &b.BorrowDate, &b.DueDate, &b.Status, &approvedBy, &returnDate, &returnCondition, &returnNotes, &b.Purpose, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if approvedBy.Valid {
		b.ApprovedBy = &approvedBy.String
	}
	if returnDate.Valid {
		t := returnDate.Time.In(wib)
		b.ReturnDate = &t
	}
	b.ReturnCondition = domain.ItemCondition(returnCondition.String)
	b.ReturnNotes = returnNotes.String
	b.BorrowDate = b.BorrowDate.In(wib)
	b.DueDate = b.DueDate.In(wib)
	return &b, nil
}

func (r *borrowRepository) Create(ctx context.Context, b *domain.BorrowRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := r.clock.Now().In(wib)
	b.CreatedAt = now
	b.UpdatedAt = now

	logger.DatabaseCall("INSERT", "borrows", "borrow_id", b.ID, "borrow_code", b.Code)
	query := `INSERT INTO borrows (id, borrow_code, user_id, borrow_date, due_date, status, purpose, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, query, b.ID, b.Code, b.UserID, b.BorrowDate, b.DueDate, b.Status, b.Purpose, b.CreatedAt, b.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCode
		}
		return err
	}

	for i, li := range b.Items {
		_, err := tx.ExecContext(ctx, `INSERT INTO borrow_items (borrow_id, position, item_id, condition, notes) VALUES ($1, $2, $3, $4, $5)`,
			b.ID, i, li.ItemID, li.Condition, li.Notes)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	logger.DatabaseResult("INSERT", int64(len(b.Items)), err, "table", "borrow_items")
	return err
}

func (r *borrowRepository) GetByID(ctx context.Context, id string) (*domain.BorrowRecord, error) {
	query := `SELECT ` + borrowColumns + ` FROM borrows WHERE id = $1`
	b, err := scanBorrow(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("borrow", id)
	}
	if err != nil {
		return nil, err
	}

	records := []domain.BorrowRecord{*b}
	if err := r.loadItems(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// loadItems fills the line items of every record with one query.
func (r *borrowRepository) loadItems(ctx context.Context, records []domain.BorrowRecord) error {
	if len(records) == 0 {
		return nil
	}
	index := make(map[string]int, len(records))
	ids := make([]string, 0, len(records))
	for i, b := range records {
		index[b.ID] = i
		ids = append(ids, b.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT borrow_id, item_id, condition, COALESCE(notes, '') FROM borrow_items WHERE borrow_id = ANY($1) ORDER BY borrow_id, position`,
		pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var borrowID string
		var li domain.LineItem
		if err := rows.Scan(&borrowID, &li.ItemID, &li.Condition, &li.Notes); err != nil {
			return err
		}
		i := index[borrowID]
		records[i].Items = append(records[i].Items, li)
	}
	return rows.Err()
}

func (r *borrowRepository) queryRecords(ctx context.Context, query string, args ...any) ([]domain.BorrowRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var records []domain.BorrowRecord
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, *b)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *borrowRepository) ListByStatusAndDueRange(ctx context.Context, status domain.BorrowStatus, from, to time.Time) ([]domain.BorrowRecord, error) {
	query := `SELECT ` + borrowColumns + ` FROM borrows WHERE status = $1 AND due_date < $2`
	args := []any{status, to}
	if !from.IsZero() {
		query += ` AND due_date >= $3`
		args = append(args, from)
	}
	query += ` ORDER BY due_date`

	logger.DatabaseCall("SELECT", "borrows", "status", status, "from", from, "to", to)
	records, err := r.queryRecords(ctx, query, args...)
	logger.DatabaseResult("SELECT", int64(len(records)), err, "table", "borrows")
	return records, err
}

func (r *borrowRepository) Save(ctx context.Context, b *domain.BorrowRecord, expected domain.BorrowStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b.UpdatedAt = r.clock.Now().In(wib)
	query := `UPDATE borrows SET status=$1, approved_by=$2, return_date=$3, return_condition=NULLIF($4, ''), return_notes=NULLIF($5, ''), updated_at=$6
	          WHERE id=$7 AND status=$8`

	logger.DatabaseCall("UPDATE", "borrows", "borrow_id", b.ID, "expected", expected, "status", b.Status)
	res, err := tx.ExecContext(ctx, query, b.Status, b.ApprovedBy, b.ReturnDate, string(b.ReturnCondition), b.ReturnNotes, b.UpdatedAt, b.ID, expected)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	logger.DatabaseResult("UPDATE", n, nil, "table", "borrows")
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM borrows WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.NewNotFoundError("borrow", b.ID)
		}
		return domain.ErrStaleRecord
	}

	for i, li := range b.Items {
		if _, err := tx.ExecContext(ctx, `UPDATE borrow_items SET condition=$1, notes=$2 WHERE borrow_id=$3 AND position=$4`,
			li.Condition, li.Notes, b.ID, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *borrowRepository) List(ctx context.Context, f domain.BorrowFilter) ([]domain.BorrowRecord, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(" AND borrow_date >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(" AND borrow_date <= $%d", len(args))
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM borrows`+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	page, limit := normalizePage(f.Page, f.Limit)
	query := `SELECT ` + borrowColumns + ` FROM borrows` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	records, err := r.queryRecords(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return records, count, nil
}

func (r *borrowRepository) CountByStatus(ctx context.Context) ([]domain.StatusCount, error) {
	query := `SELECT b.status, COUNT(*), COALESCE(SUM(li.n), 0)
	          FROM borrows b
	          LEFT JOIN (SELECT borrow_id, COUNT(*) AS n FROM borrow_items GROUP BY borrow_id) li ON li.borrow_id = b.id
	          GROUP BY b.status ORDER BY b.status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []domain.StatusCount
	for rows.Next() {
		var sc domain.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count, &sc.Items); err != nil {
			return nil, err
		}
		stats = append(stats, sc)
	}
	return stats, rows.Err()
}
