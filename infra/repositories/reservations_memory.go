package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openmart/inventory/domain/inventory"
)

type ReservationsMemory struct {
	mu           sync.Mutex
	reservations map[string]*inventory.Reservation
	now          func() time.Time
}

func NewReservationsMemory() *ReservationsMemory {
	return &ReservationsMemory{
		reservations: make(map[string]*inventory.Reservation),
		now:          time.Now,
	}
}

func (r *ReservationsMemory) Create(ctx context.Context, orderID string, lines []inventory.Line) (*inventory.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.reservations[orderID]; exists {
		return nil, fmt.Errorf("%w: order %s", inventory.ErrAlreadyExists, orderID)
	}
	reservation := &inventory.Reservation{
		OrderID:   orderID,
		Status:    inventory.StatusHeld,
		Lines:     append([]inventory.Line(nil), lines...),
		CreatedAt: r.now(),
	}
	r.reservations[orderID] = reservation
	return copyReservation(reservation), nil
}

func (r *ReservationsMemory) Get(ctx context.Context, orderID string) (*inventory.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", inventory.ErrNotFound, orderID)
	}
	return copyReservation(reservation), nil
}

func (r *ReservationsMemory) MarkCommitted(ctx context.Context, orderID string) error {
	return r.transition(orderID, inventory.StatusCommitted)
}

func (r *ReservationsMemory) MarkReleased(ctx context.Context, orderID string) error {
	return r.transition(orderID, inventory.StatusReleased)
}

func (r *ReservationsMemory) transition(orderID string, to inventory.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reservation, ok := r.reservations[orderID]
	if !ok {
		return fmt.Errorf("%w: order %s", inventory.ErrNotFound, orderID)
	}
	if reservation.Status != inventory.StatusHeld {
		return fmt.Errorf("%w: order %s is %s", inventory.ErrInvalidTransition, orderID, reservation.Status)
	}
	resolvedAt := r.now()
	reservation.Status = to
	reservation.ResolvedAt = &resolvedAt
	return nil
}

func (r *ReservationsMemory) ListExpiredHeld(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var orderIDs []string
	for orderID, reservation := range r.reservations {
		if reservation.Status == inventory.StatusHeld && reservation.CreatedAt.Before(cutoff) {
			orderIDs = append(orderIDs, orderID)
		}
	}
	return orderIDs, nil
}

func copyReservation(reservation *inventory.Reservation) *inventory.Reservation {
	copied := *reservation
	copied.Lines = append([]inventory.Line(nil), reservation.Lines...)
	if reservation.ResolvedAt != nil {
		resolvedAt := *reservation.ResolvedAt
		copied.ResolvedAt = &resolvedAt
	}
	return &copied
}
