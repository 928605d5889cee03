package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS inventory (
	sku                 TEXT PRIMARY KEY,
	quantity            INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	reserved            INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0),
	available           INTEGER NOT NULL DEFAULT 0 CHECK (available >= 0),
	low_stock_threshold INTEGER NOT NULL DEFAULT 10,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (available = quantity - reserved)
);

CREATE TABLE IF NOT EXISTS reservations (
	order_id    TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS reservation_lines (
	order_id TEXT NOT NULL REFERENCES reservations (order_id),
	line_no  INTEGER NOT NULL,
	sku      TEXT NOT NULL,
	quantity INTEGER NOT NULL CHECK (quantity > 0),
	PRIMARY KEY (order_id, line_no)
);

CREATE INDEX IF NOT EXISTS reservations_held_created_at
	ON reservations (created_at) WHERE status = 'HELD';
`

// Migrate creates the ledger and reservation tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
