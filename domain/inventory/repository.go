package inventory

import (
	"context"
	"time"
)

// Ledger owns stock truth. Per-SKU mutations are atomic with respect to
// concurrent callers; the multi-line helpers are all-or-nothing so a partially
// failed reserve is never observable from outside.
type Ledger interface {
	GetAvailable(ctx context.Context, sku string) (*StockItem, error)

	// TryDecrementAvailable atomically checks available >= qty and, if so, moves
	// qty from available to reserved. Returns a Crossing when the decrement takes
	// the SKU across its low-stock threshold.
	TryDecrementAvailable(ctx context.Context, sku string, qty int) (*Crossing, error)

	// RestoreAvailable moves qty back from reserved to available. It never
	// drives reserved below zero: it clamps and reports ErrInternalConsistency.
	RestoreAvailable(ctx context.Context, sku string, qty int) error

	// FinalizeReservedAsSold permanently consumes reserved units: quantity and
	// reserved both drop by qty, available is untouched.
	FinalizeReservedAsSold(ctx context.Context, sku string, qty int) error

	// ReserveLines applies TryDecrementAvailable to every line or to none of
	// them. On failure the ledger is left exactly as it was before the call.
	ReserveLines(ctx context.Context, lines []Line) ([]Crossing, error)

	// RestoreLines undoes a prior ReserveLines.
	RestoreLines(ctx context.Context, lines []Line) error
}

// Reservations is the durable record of holds, keyed by order id.
type Reservations interface {
	// Create fails with ErrAlreadyExists if any reservation for the order
	// exists, in any status.
	Create(ctx context.Context, orderID string, lines []Line) (*Reservation, error)
	Get(ctx context.Context, orderID string) (*Reservation, error)

	// MarkCommitted and MarkReleased fail with ErrInvalidTransition unless the
	// current status is HELD. The transition is linearizable per order id.
	MarkCommitted(ctx context.Context, orderID string) error
	MarkReleased(ctx context.Context, orderID string) error

	// ListExpiredHeld returns order ids of HELD reservations created before cutoff.
	ListExpiredHeld(ctx context.Context, cutoff time.Time) ([]string, error)
}
