package reserve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmart/inventory/domain/inventory"
	"github.com/openmart/inventory/infra/metrics"
	"github.com/openmart/inventory/infra/tracing"
	"github.com/openmart/inventory/protocols"
)

const notifyTimeout = 5 * time.Second

// Reserve places a hold for an order: every line is decremented from
// availability or none is, and exactly one reservation record exists per order
// id no matter how many times the caller retries.
type Reserve struct {
	ledger       inventory.Ledger
	reservations inventory.Reservations
	notifier     protocols.Notifier
	cache        protocols.AvailabilityCache
}

func NewReserve(ledger inventory.Ledger, reservations inventory.Reservations, notifier protocols.Notifier, cache protocols.AvailabilityCache) *Reserve {
	return &Reserve{
		ledger:       ledger,
		reservations: reservations,
		notifier:     notifier,
		cache:        cache,
	}
}

type Input struct {
	OrderID string
	Lines   []inventory.Line
}

type Output struct {
	OrderID string
	Status  inventory.Status
}

func (r *Reserve) Reserve(ctx context.Context, input Input) (Output, error) {
	ctx, span := tracing.Start(ctx, "reserve")
	defer span.End()

	if input.OrderID == "" {
		return Output{}, inventory.NewValidationError("order id is required")
	}
	if err := inventory.ValidateLines(input.Lines); err != nil {
		return Output{}, err
	}

	// Fast path for retries: the order id is the idempotency key.
	if _, err := r.reservations.Get(ctx, input.OrderID); err == nil {
		metrics.ReservationsTotal.WithLabelValues("reserve", "already_exists").Inc()
		return Output{}, fmt.Errorf("%w: order %s", inventory.ErrAlreadyExists, input.OrderID)
	} else if !errors.Is(err, inventory.ErrNotFound) {
		return Output{}, err
	}

	crossings, err := r.ledger.ReserveLines(ctx, input.Lines)
	if err != nil {
		metrics.ReservationsTotal.WithLabelValues("reserve", outcomeLabel(err)).Inc()
		return Output{}, err
	}

	// The caller may have gone away while the ledger call was in flight. Undo
	// the hold rather than leaving stock pinned to an order nobody will finish.
	if ctx.Err() != nil {
		r.rollback(input.Lines)
		return Output{}, ctx.Err()
	}

	if _, err := r.reservations.Create(ctx, input.OrderID, input.Lines); err != nil {
		// Lost a duplicate race after decrementing: the winner owns the hold,
		// this call's decrements must go back.
		r.rollback(input.Lines)
		metrics.ReservationsTotal.WithLabelValues("reserve", outcomeLabel(err)).Inc()
		return Output{}, err
	}

	r.invalidate(input.Lines)
	r.notify(crossings)
	metrics.ReservationsTotal.WithLabelValues("reserve", "success").Inc()
	return Output{OrderID: input.OrderID, Status: inventory.StatusHeld}, nil
}

func (r *Reserve) rollback(lines []inventory.Line) {
	// Detached context: the rollback must run even when the request context is
	// already dead.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.ledger.RestoreLines(ctx, lines); err != nil {
		metrics.ConsistencyErrorsTotal.Inc()
		log.Error().Err(err).Msg("failed to roll back reserved lines")
	}
	r.invalidate(lines)
}

func (r *Reserve) invalidate(lines []inventory.Line) {
	if r.cache == nil {
		return
	}
	skus := make([]string, 0, len(lines))
	for _, line := range lines {
		skus = append(skus, line.SKU)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.cache.Invalidate(ctx, skus...); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate availability cache")
	}
}

// notify fires the low-stock signal without blocking or failing the reserve.
func (r *Reserve) notify(crossings []inventory.Crossing) {
	if r.notifier == nil || len(crossings) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		for _, crossing := range crossings {
			if err := r.notifier.LowStock(ctx, crossing.SKU, crossing.Available); err != nil {
				log.Warn().Err(err).Str("sku", crossing.SKU).Msg("low stock notification failed")
				continue
			}
			metrics.LowStockEventsTotal.Inc()
		}
	}()
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, inventory.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, inventory.ErrNotFound):
		return "not_found"
	case inventory.IsInsufficientStock(err):
		return "insufficient_stock"
	default:
		return "error"
	}
}
