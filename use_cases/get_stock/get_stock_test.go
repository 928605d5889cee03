package get_stock

import (
	"context"
	"errors"
	"testing"

	"github.com/openmart/inventory/domain/inventory"
	"github.com/openmart/inventory/protocols"
)

type mockLedger struct {
	item     *inventory.StockItem
	getErr   error
	getCalls int
}

func (m *mockLedger) GetAvailable(ctx context.Context, sku string) (*inventory.StockItem, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.item, nil
}

func (m *mockLedger) TryDecrementAvailable(ctx context.Context, sku string, qty int) (*inventory.Crossing, error) {
	return nil, errors.New("not used")
}

func (m *mockLedger) RestoreAvailable(ctx context.Context, sku string, qty int) error {
	return errors.New("not used")
}

func (m *mockLedger) FinalizeReservedAsSold(ctx context.Context, sku string, qty int) error {
	return errors.New("not used")
}

func (m *mockLedger) ReserveLines(ctx context.Context, lines []inventory.Line) ([]inventory.Crossing, error) {
	return nil, errors.New("not used")
}

func (m *mockLedger) RestoreLines(ctx context.Context, lines []inventory.Line) error {
	return errors.New("not used")
}

type mockCache struct {
	snapshot *protocols.StockSnapshot
	getErr   error
	setWith  *protocols.StockSnapshot
}

func (m *mockCache) Get(ctx context.Context, sku string) (*protocols.StockSnapshot, error) {
	return m.snapshot, m.getErr
}

func (m *mockCache) Set(ctx context.Context, snapshot *protocols.StockSnapshot) error {
	m.setWith = snapshot
	return nil
}

func (m *mockCache) Invalidate(ctx context.Context, skus ...string) error { return nil }

func TestGetStock_CacheHit(t *testing.T) {
	ledger := &mockLedger{}
	cache := &mockCache{snapshot: &protocols.StockSnapshot{SKU: "WIDGET-1", Quantity: 10, Reserved: 4, Available: 6}}
	uc := NewGetStock(ledger, cache)

	out, err := uc.GetStock(context.Background(), "WIDGET-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Available != 6 || out.Reserved != 4 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if ledger.getCalls != 0 {
		t.Fatalf("cache hit must not touch the ledger")
	}
}

func TestGetStock_CacheMiss(t *testing.T) {
	ledger := &mockLedger{item: &inventory.StockItem{SKU: "WIDGET-1", Quantity: 10, Reserved: 4, Available: 6}}
	cache := &mockCache{}
	uc := NewGetStock(ledger, cache)

	out, err := uc.GetStock(context.Background(), "WIDGET-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Available != 6 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if ledger.getCalls != 1 {
		t.Fatalf("expected one ledger lookup, got %d", ledger.getCalls)
	}
	if cache.setWith == nil || cache.setWith.Available != 6 {
		t.Fatalf("expected cache repopulated, got %+v", cache.setWith)
	}
}

func TestGetStock_CacheFailureFallsThrough(t *testing.T) {
	ledger := &mockLedger{item: &inventory.StockItem{SKU: "WIDGET-1", Quantity: 10, Available: 10}}
	cache := &mockCache{getErr: errors.New("redis down")}
	uc := NewGetStock(ledger, cache)

	out, err := uc.GetStock(context.Background(), "WIDGET-1")
	if err != nil {
		t.Fatalf("cache failure must not fail the read, got %v", err)
	}
	if out.Available != 10 {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestGetStock_NotFound(t *testing.T) {
	uc := NewGetStock(&mockLedger{getErr: inventory.ErrNotFound}, nil)
	_, err := uc.GetStock(context.Background(), "MISSING")
	if !errors.Is(err, inventory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetStock_Validation(t *testing.T) {
	uc := NewGetStock(&mockLedger{}, nil)
	if _, err := uc.GetStock(context.Background(), ""); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
