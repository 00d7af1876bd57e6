package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lab-inventory-backend/internal/clock"
	"lab-inventory-backend/internal/repository"

	"github.com/lib/pq"
)

var wib = clock.WIB

type Store struct {
	db *sql.DB
	repository.UserRepository
	repository.ItemRepository
	repository.BorrowRepository
}

// NewStore builds every repository on db. Timestamps come from c.
func NewStore(db *sql.DB, c clock.Clock) *Store {
	return &Store{
		db:               db,
		UserRepository:   NewUserRepository(db, c),
		ItemRepository:   NewItemRepository(db, c),
		BorrowRepository: NewBorrowRepository(db, c),
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	phone         TEXT,
	class         TEXT,
	role          TEXT NOT NULL DEFAULT 'user',
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id             TEXT PRIMARY KEY,
	code           TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL,
	specifications JSONB NOT NULL DEFAULT '{}',
	condition      TEXT NOT NULL DEFAULT 'Baik',
	status         TEXT NOT NULL DEFAULT 'Tersedia',
	location       TEXT NOT NULL,
	purchase_price NUMERIC(14, 2),
	purchase_date  TIMESTAMPTZ,
	warranty_until TIMESTAMPTZ,
	images         TEXT[] NOT NULL DEFAULT '{}',
	notes          TEXT,
	created_by     TEXT NOT NULL,
	updated_by     TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS items_lookup_idx ON items (code, name, category, status);

CREATE TABLE IF NOT EXISTS borrows (
	id               TEXT PRIMARY KEY,
	borrow_code      TEXT NOT NULL UNIQUE,
	user_id          TEXT NOT NULL REFERENCES users (id),
	borrow_date      TIMESTAMPTZ NOT NULL,
	due_date         TIMESTAMPTZ NOT NULL CHECK (due_date > borrow_date),
	status           TEXT NOT NULL,
	approved_by      TEXT REFERENCES users (id),
	return_date      TIMESTAMPTZ,
	return_condition TEXT,
	return_notes     TEXT,
	purpose          TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS borrows_status_due_idx ON borrows (status, due_date);

-- item_id has no foreign key: returned borrows keep referencing deleted items.
CREATE TABLE IF NOT EXISTS borrow_items (
	borrow_id TEXT NOT NULL REFERENCES borrows (id),
	position  INT NOT NULL,
	item_id   TEXT NOT NULL,
	condition TEXT NOT NULL DEFAULT 'Baik',
	notes     TEXT,
	PRIMARY KEY (borrow_id, position)
);

-- Upgrades for databases created before items carried purchase details.
ALTER TABLE items ADD COLUMN IF NOT EXISTS specifications JSONB NOT NULL DEFAULT '{}';
ALTER TABLE items ADD COLUMN IF NOT EXISTS purchase_price NUMERIC(14, 2);
ALTER TABLE items ADD COLUMN IF NOT EXISTS purchase_date TIMESTAMPTZ;
ALTER TABLE items ADD COLUMN IF NOT EXISTS warranty_until TIMESTAMPTZ;
ALTER TABLE items ADD COLUMN IF NOT EXISTS images TEXT[] NOT NULL DEFAULT '{}';
ALTER TABLE borrow_items DROP CONSTRAINT IF EXISTS borrow_items_item_id_fkey;
`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
