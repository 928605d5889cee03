package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/openmart/inventory/domain/inventory"
)

// LedgerPostgres implements the ledger on top of single-statement conditional
// updates: the availability check and the mutation happen in one row-level
// atomic step, so two concurrent reserves can never both win the same units.
type LedgerPostgres struct {
	db *sql.DB
}

func NewLedgerPostgres(db *sql.DB) *LedgerPostgres {
	return &LedgerPostgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (l *LedgerPostgres) GetAvailable(ctx context.Context, sku string) (*inventory.StockItem, error) {
	return getStockItem(ctx, l.db, sku)
}

func getStockItem(ctx context.Context, q querier, sku string) (*inventory.StockItem, error) {
	item := inventory.StockItem{SKU: sku}
	err := q.QueryRowContext(ctx,
		`SELECT quantity, reserved, available, low_stock_threshold FROM inventory WHERE sku = $1`,
		sku,
	).Scan(&item.Quantity, &item.Reserved, &item.Available, &item.LowStockThreshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sku %s", inventory.ErrNotFound, sku)
	}
	if err != nil {
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return &item, nil
}

func (l *LedgerPostgres) TryDecrementAvailable(ctx context.Context, sku string, qty int) (*inventory.Crossing, error) {
	return tryDecrement(ctx, l.db, sku, qty)
}

func tryDecrement(ctx context.Context, q querier, sku string, qty int) (*inventory.Crossing, error) {
	var available, threshold int
	err := q.QueryRowContext(ctx,
		`UPDATE inventory
		 SET reserved = reserved + $2, available = available - $2, updated_at = now()
		 WHERE sku = $1 AND available >= $2
		 RETURNING available, low_stock_threshold`,
		sku, qty,
	).Scan(&available, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		// The guard refused. Tell the caller whether the SKU is unknown or short.
		item, gerr := getStockItem(ctx, q, sku)
		if gerr != nil {
			return nil, gerr
		}
		return nil, &inventory.InsufficientStockError{SKU: sku, Requested: qty, Available: item.Available}
	}
	if err != nil {
		return nil, fmt.Errorf("decrement available: %w", err)
	}
	if available+qty > threshold && available <= threshold {
		return &inventory.Crossing{SKU: sku, Available: available}, nil
	}
	return nil, nil
}

func (l *LedgerPostgres) RestoreAvailable(ctx context.Context, sku string, qty int) error {
	return restore(ctx, l.db, sku, qty)
}

func restore(ctx context.Context, q querier, sku string, qty int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory
		 SET reserved = reserved - $2, available = available + $2, updated_at = now()
		 WHERE sku = $1 AND reserved >= $2`,
		sku, qty,
	)
	if err != nil {
		return fmt.Errorf("restore available: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("restore available: %w", err)
	}
	if rows == 1 {
		return nil
	}
	if _, err := getStockItem(ctx, q, sku); err != nil {
		return err
	}
	// Restoring more than is reserved means the ledger and the reservation
	// record disagree. Clamp to a consistent state and surface the drift.
	if _, err := q.ExecContext(ctx,
		`UPDATE inventory SET reserved = 0, available = quantity, updated_at = now() WHERE sku = $1`,
		sku,
	); err != nil {
		return fmt.Errorf("clamp reserved: %w", err)
	}
	return fmt.Errorf("%w: restore of %d exceeds reserved for sku %s", inventory.ErrInternalConsistency, qty, sku)
}

func (l *LedgerPostgres) FinalizeReservedAsSold(ctx context.Context, sku string, qty int) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE inventory
		 SET quantity = quantity - $2, reserved = reserved - $2, updated_at = now()
		 WHERE sku = $1 AND reserved >= $2`,
		sku, qty,
	)
	if err != nil {
		return fmt.Errorf("finalize reserved: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize reserved: %w", err)
	}
	if rows == 1 {
		return nil
	}
	if _, err := getStockItem(ctx, l.db, sku); err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx,
		`UPDATE inventory SET quantity = quantity - reserved, reserved = 0, updated_at = now() WHERE sku = $1`,
		sku,
	); err != nil {
		return fmt.Errorf("clamp reserved: %w", err)
	}
	return fmt.Errorf("%w: finalize of %d exceeds reserved for sku %s", inventory.ErrInternalConsistency, qty, sku)
}

// ReserveLines runs every decrement inside one transaction so a failed line
// rolls the whole call back without any observable intermediate state. Rows
// are touched in sorted SKU order to avoid deadlocks between overlapping
// reserves that list the same SKUs differently.
func (l *LedgerPostgres) ReserveLines(ctx context.Context, lines []inventory.Line) ([]inventory.Crossing, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback()

	var crossings []inventory.Crossing
	for _, line := range sortedBySKU(lines) {
		crossing, err := tryDecrement(ctx, tx, line.SKU, line.Quantity)
		if err != nil {
			return nil, err
		}
		if crossing != nil {
			crossings = append(crossings, *crossing)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	return crossings, nil
}

func (l *LedgerPostgres) RestoreLines(ctx context.Context, lines []inventory.Line) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	for _, line := range sortedBySKU(lines) {
		if err := restore(ctx, tx, line.SKU, line.Quantity); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	return nil
}

func sortedBySKU(lines []inventory.Line) []inventory.Line {
	sorted := append([]inventory.Line(nil), lines...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SKU < sorted[j].SKU })
	return sorted
}
