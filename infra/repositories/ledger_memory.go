package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/openmart/inventory/domain/inventory"
)

// LedgerMemory keeps stock in a mutex-guarded map. The single lock makes every
// per-SKU mutation linearizable and lets ReserveLines roll back a partial
// failure before any other caller can observe it.
type LedgerMemory struct {
	mu    sync.Mutex
	items map[string]*inventory.StockItem
}

func NewLedgerMemory() *LedgerMemory {
	return &LedgerMemory{items: make(map[string]*inventory.StockItem)}
}

// Save creates or replaces a ledger entry. Available is derived, never trusted.
func (l *LedgerMemory) Save(item inventory.StockItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item.Available = item.Quantity - item.Reserved
	l.items[item.SKU] = &item
}

func (l *LedgerMemory) GetAvailable(ctx context.Context, sku string) (*inventory.StockItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[sku]
	if !ok {
		return nil, fmt.Errorf("%w: sku %s", inventory.ErrNotFound, sku)
	}
	copied := *item
	return &copied, nil
}

func (l *LedgerMemory) TryDecrementAvailable(ctx context.Context, sku string, qty int) (*inventory.Crossing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tryDecrementLocked(sku, qty)
}

func (l *LedgerMemory) tryDecrementLocked(sku string, qty int) (*inventory.Crossing, error) {
	item, ok := l.items[sku]
	if !ok {
		return nil, fmt.Errorf("%w: sku %s", inventory.ErrNotFound, sku)
	}
	if item.Available < qty {
		return nil, &inventory.InsufficientStockError{SKU: sku, Requested: qty, Available: item.Available}
	}
	wasAbove := item.Available > item.LowStockThreshold
	item.Reserved += qty
	item.Available = item.Quantity - item.Reserved
	if wasAbove && item.Available <= item.LowStockThreshold {
		return &inventory.Crossing{SKU: sku, Available: item.Available}, nil
	}
	return nil, nil
}

func (l *LedgerMemory) RestoreAvailable(ctx context.Context, sku string, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restoreLocked(sku, qty)
}

func (l *LedgerMemory) restoreLocked(sku string, qty int) error {
	item, ok := l.items[sku]
	if !ok {
		return fmt.Errorf("%w: sku %s", inventory.ErrNotFound, sku)
	}
	if qty > item.Reserved {
		// Reservation/ledger drift. Clamp so the invariant holds and report it.
		item.Reserved = 0
		item.Available = item.Quantity
		return fmt.Errorf("%w: restore of %d exceeds reserved for sku %s", inventory.ErrInternalConsistency, qty, sku)
	}
	item.Reserved -= qty
	item.Available = item.Quantity - item.Reserved
	return nil
}

func (l *LedgerMemory) FinalizeReservedAsSold(ctx context.Context, sku string, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[sku]
	if !ok {
		return fmt.Errorf("%w: sku %s", inventory.ErrNotFound, sku)
	}
	if qty > item.Reserved {
		sold := item.Reserved
		item.Quantity -= sold
		item.Reserved = 0
		item.Available = item.Quantity
		return fmt.Errorf("%w: finalize of %d exceeds reserved for sku %s", inventory.ErrInternalConsistency, qty, sku)
	}
	item.Quantity -= qty
	item.Reserved -= qty
	item.Available = item.Quantity - item.Reserved
	return nil
}

// ReserveLines decrements every line under one lock acquisition. On failure the
// already-applied lines are undone before the lock is released, so no reader
// ever sees the partial state.
func (l *LedgerMemory) ReserveLines(ctx context.Context, lines []inventory.Line) ([]inventory.Crossing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var crossings []inventory.Crossing
	for i, line := range lines {
		crossing, err := l.tryDecrementLocked(line.SKU, line.Quantity)
		if err != nil {
			for _, applied := range lines[:i] {
				if rerr := l.restoreLocked(applied.SKU, applied.Quantity); rerr != nil {
					return nil, rerr
				}
			}
			return nil, err
		}
		if crossing != nil {
			crossings = append(crossings, *crossing)
		}
	}
	return crossings, nil
}

func (l *LedgerMemory) RestoreLines(ctx context.Context, lines []inventory.Line) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range lines {
		if err := l.restoreLocked(line.SKU, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}
