package reserve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmart/inventory/domain/inventory"
)

type mockLedger struct {
	reserveCrossings []inventory.Crossing
	reserveErr       error
	onReserveLines   func()

	reserveCalledWith []inventory.Line
	restoreCalledWith []inventory.Line
}

func (m *mockLedger) GetAvailable(ctx context.Context, sku string) (*inventory.StockItem, error) {
	return nil, errors.New("not used")
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
	m.reserveCalledWith = lines
	if m.onReserveLines != nil {
		m.onReserveLines()
	}
	return m.reserveCrossings, m.reserveErr
}

func (m *mockLedger) RestoreLines(ctx context.Context, lines []inventory.Line) error {
	m.restoreCalledWith = lines
	return nil
}

type mockReservations struct {
	getResult *inventory.Reservation
	getErr    error
	createErr error

	createCalledWithOrder string
	createCalledWithLines []inventory.Line
}

func (m *mockReservations) Create(ctx context.Context, orderID string, lines []inventory.Line) (*inventory.Reservation, error) {
	m.createCalledWithOrder = orderID
	m.createCalledWithLines = lines
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &inventory.Reservation{OrderID: orderID, Status: inventory.StatusHeld, Lines: lines}, nil
}

func (m *mockReservations) Get(ctx context.Context, orderID string) (*inventory.Reservation, error) {
	return m.getResult, m.getErr
}

func (m *mockReservations) MarkCommitted(ctx context.Context, orderID string) error { return nil }
func (m *mockReservations) MarkReleased(ctx context.Context, orderID string) error  { return nil }
func (m *mockReservations) ListExpiredHeld(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

type mockNotifier struct {
	events chan inventory.Crossing
}

func (m *mockNotifier) LowStock(ctx context.Context, sku string, available int) error {
	m.events <- inventory.Crossing{SKU: sku, Available: available}
	return nil
}

func TestReserve_Success(t *testing.T) {
	ledger := &mockLedger{}
	reservations := &mockReservations{getErr: inventory.ErrNotFound}
	uc := NewReserve(ledger, reservations, nil, nil)

	lines := []inventory.Line{{SKU: "WIDGET-1", Quantity: 4}}
	out, err := uc.Reserve(context.Background(), Input{OrderID: "order-100", Lines: lines})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.OrderID != "order-100" || out.Status != inventory.StatusHeld {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(ledger.reserveCalledWith) != 1 || ledger.reserveCalledWith[0].SKU != "WIDGET-1" {
		t.Fatalf("expected ReserveLines called with request lines, got %+v", ledger.reserveCalledWith)
	}
	if reservations.createCalledWithOrder != "order-100" || len(reservations.createCalledWithLines) != 1 {
		t.Fatalf("expected Create called with order and lines")
	}
	if ledger.restoreCalledWith != nil {
		t.Fatalf("expected no rollback on success")
	}
}

func TestReserve_DuplicateOrder_FastPath(t *testing.T) {
	ledger := &mockLedger{}
	reservations := &mockReservations{getResult: &inventory.Reservation{OrderID: "order-100", Status: inventory.StatusHeld}}
	uc := NewReserve(ledger, reservations, nil, nil)

	_, err := uc.Reserve(context.Background(), Input{OrderID: "order-100", Lines: []inventory.Line{{SKU: "WIDGET-1", Quantity: 1}}})
	if !errors.Is(err, inventory.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if ledger.reserveCalledWith != nil {
		t.Fatalf("expected ledger untouched on duplicate order")
	}
}

func TestReserve_DuplicateOrder_LostRace(t *testing.T) {
	ledger := &mockLedger{}
	reservations := &mockReservations{
		getErr:    inventory.ErrNotFound,
		createErr: inventory.ErrAlreadyExists,
	}
	uc := NewReserve(ledger, reservations, nil, nil)

	lines := []inventory.Line{{SKU: "WIDGET-1", Quantity: 4}}
	_, err := uc.Reserve(context.Background(), Input{OrderID: "order-100", Lines: lines})
	if !errors.Is(err, inventory.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if len(ledger.restoreCalledWith) != 1 || ledger.restoreCalledWith[0].SKU != "WIDGET-1" {
		t.Fatalf("expected decrements rolled back after losing the race, got %+v", ledger.restoreCalledWith)
	}
}

func TestReserve_InsufficientStock(t *testing.T) {
	ledger := &mockLedger{reserveErr: &inventory.InsufficientStockError{SKU: "WIDGET-1", Requested: 7, Available: 6}}
	reservations := &mockReservations{getErr: inventory.ErrNotFound}
	uc := NewReserve(ledger, reservations, nil, nil)

	_, err := uc.Reserve(context.Background(), Input{OrderID: "order-101", Lines: []inventory.Line{{SKU: "WIDGET-1", Quantity: 7}}})
	if !inventory.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if reservations.createCalledWithOrder != "" {
		t.Fatalf("expected no reservation created on failed reserve")
	}
}

func TestReserve_Validation(t *testing.T) {
	uc := NewReserve(&mockLedger{}, &mockReservations{}, nil, nil)

	if _, err := uc.Reserve(context.Background(), Input{OrderID: "", Lines: []inventory.Line{{SKU: "A", Quantity: 1}}}); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("expected validation error for empty order id, got %v", err)
	}
	if _, err := uc.Reserve(context.Background(), Input{OrderID: "order-1"}); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("expected validation error for empty lines, got %v", err)
	}
	if _, err := uc.Reserve(context.Background(), Input{OrderID: "order-1", Lines: []inventory.Line{{SKU: "A", Quantity: 0}}}); !errors.Is(err, inventory.ErrValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
}

func TestReserve_CancelledMidFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ledger := &mockLedger{onReserveLines: cancel}
	reservations := &mockReservations{getErr: inventory.ErrNotFound}
	uc := NewReserve(ledger, reservations, nil, nil)

	lines := []inventory.Line{{SKU: "WIDGET-1", Quantity: 2}}
	_, err := uc.Reserve(ctx, Input{OrderID: "order-100", Lines: lines})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(ledger.restoreCalledWith) != 1 {
		t.Fatalf("expected decrements rolled back after cancellation, got %+v", ledger.restoreCalledWith)
	}
	if reservations.createCalledWithOrder != "" {
		t.Fatalf("expected no reservation created after cancellation")
	}
}

func TestReserve_NotifiesLowStock(t *testing.T) {
	ledger := &mockLedger{reserveCrossings: []inventory.Crossing{{SKU: "WIDGET-1", Available: 9}}}
	reservations := &mockReservations{getErr: inventory.ErrNotFound}
	notifier := &mockNotifier{events: make(chan inventory.Crossing, 1)}
	uc := NewReserve(ledger, reservations, notifier, nil)

	_, err := uc.Reserve(context.Background(), Input{OrderID: "order-100", Lines: []inventory.Line{{SKU: "WIDGET-1", Quantity: 3}}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	select {
	case event := <-notifier.events:
		if event.SKU != "WIDGET-1" || event.Available != 9 {
			t.Fatalf("unexpected low stock event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected low stock notification")
	}
}
