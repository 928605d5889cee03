package release

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmart/inventory/domain/inventory"
)

type mockLedger struct {
	restoreErr    error
	restoredLines []inventory.Line
}

func (m *mockLedger) GetAvailable(ctx context.Context, sku string) (*inventory.StockItem, error) {
	return nil, errors.New("not used")
}

func (m *mockLedger) TryDecrementAvailable(ctx context.Context, sku string, qty int) (*inventory.Crossing, error) {
	return nil, errors.New("not used")
}

func (m *mockLedger) RestoreAvailable(ctx context.Context, sku string, qty int) error {
	if m.restoreErr != nil {
		return m.restoreErr
	}
	m.restoredLines = append(m.restoredLines, inventory.Line{SKU: sku, Quantity: qty})
	return nil
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

type mockReservations struct {
	getResults []*inventory.Reservation
	getErr     error
	getCalls   int

	markErr    error
	markedWith string
}

func (m *mockReservations) Create(ctx context.Context, orderID string, lines []inventory.Line) (*inventory.Reservation, error) {
	return nil, errors.New("not used")
}

func (m *mockReservations) Get(ctx context.Context, orderID string) (*inventory.Reservation, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := m.getResults[m.getCalls]
	if m.getCalls < len(m.getResults)-1 {
		m.getCalls++
	}
	return result, nil
}

func (m *mockReservations) MarkCommitted(ctx context.Context, orderID string) error {
	return errors.New("not used")
}

func (m *mockReservations) MarkReleased(ctx context.Context, orderID string) error {
	m.markedWith = orderID
	return m.markErr
}

func (m *mockReservations) ListExpiredHeld(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

func held(orderID string, lines ...inventory.Line) *inventory.Reservation {
	return &inventory.Reservation{OrderID: orderID, Status: inventory.StatusHeld, Lines: lines}
}

func TestRelease_RestoresStoredLines(t *testing.T) {
	ledger := &mockLedger{}
	reservations := &mockReservations{getResults: []*inventory.Reservation{
		held("order-100", inventory.Line{SKU: "WIDGET-1", Quantity: 4}, inventory.Line{SKU: "WIDGET-2", Quantity: 1}),
	}}
	uc := NewRelease(ledger, reservations, nil)

	if err := uc.Release(context.Background(), Input{OrderID: "order-100"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if reservations.markedWith != "order-100" {
		t.Fatalf("expected MarkReleased before ledger effects")
	}
	if len(ledger.restoredLines) != 2 || ledger.restoredLines[0].SKU != "WIDGET-1" || ledger.restoredLines[1].SKU != "WIDGET-2" {
		t.Fatalf("expected stored lines restored, got %+v", ledger.restoredLines)
	}
}

func TestRelease_AlreadyReleased_Noop(t *testing.T) {
	ledger := &mockLedger{}
	reservations := &mockReservations{getResults: []*inventory.Reservation{
		{OrderID: "order-100", Status: inventory.StatusReleased},
	}}
	uc := NewRelease(ledger, reservations, nil)

	if err := uc.Release(context.Background(), Input{OrderID: "order-100"}); err != nil {
		t.Fatalf("expected idempotent nil error, got %v", err)
	}
	if len(ledger.restoredLines) != 0 {
		t.Fatalf("expected no ledger effects on repeat release")
	}
}

func TestRelease_Committed_InvalidTransition(t *testing.T) {
	reservations := &mockReservations{getResults: []*inventory.Reservation{
		{OrderID: "order-100", Status: inventory.StatusCommitted},
	}}
	uc := NewRelease(&mockLedger{}, reservations, nil)

	err := uc.Release(context.Background(), Input{OrderID: "order-100"})
	if !errors.Is(err, inventory.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRelease_NotFound(t *testing.T) {
	uc := NewRelease(&mockLedger{}, &mockReservations{getErr: inventory.ErrNotFound}, nil)
	err := uc.Release(context.Background(), Input{OrderID: "order-100"})
	if !errors.Is(err, inventory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRelease_LostMarkRace_Noop(t *testing.T) {
	ledger := &mockLedger{}
	reservations := &mockReservations{
		getResults: []*inventory.Reservation{
			held("order-100", inventory.Line{SKU: "WIDGET-1", Quantity: 4}),
			{OrderID: "order-100", Status: inventory.StatusReleased},
		},
		markErr: inventory.ErrInvalidTransition,
	}
	uc := NewRelease(ledger, reservations, nil)

	if err := uc.Release(context.Background(), Input{OrderID: "order-100"}); err != nil {
		t.Fatalf("expected nil error after losing the race to another release, got %v", err)
	}
	if len(ledger.restoredLines) != 0 {
		t.Fatalf("loser must not apply ledger effects, got %+v", ledger.restoredLines)
	}
}

func TestRelease_RestoreFailure(t *testing.T) {
	ledger := &mockLedger{restoreErr: errors.New("boom")}
	reservations := &mockReservations{getResults: []*inventory.Reservation{
		held("order-100", inventory.Line{SKU: "WIDGET-1", Quantity: 4}),
	}}
	uc := NewRelease(ledger, reservations, nil)

	err := uc.Release(context.Background(), Input{OrderID: "order-100"})
	if !errors.Is(err, inventory.ErrInternalConsistency) {
		t.Fatalf("expected ErrInternalConsistency, got %v", err)
	}
}
