package commit

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

// Commit finalizes a hold into a permanent stock reduction. The lines to
// consume come from the stored reservation, never from the caller.
type Commit struct {
	ledger       inventory.Ledger
	reservations inventory.Reservations
	cache        protocols.AvailabilityCache
}

func NewCommit(ledger inventory.Ledger, reservations inventory.Reservations, cache protocols.AvailabilityCache) *Commit {
	return &Commit{ledger: ledger, reservations: reservations, cache: cache}
}

type Input struct {
	OrderID string
}

func (c *Commit) Commit(ctx context.Context, input Input) error {
	ctx, span := tracing.Start(ctx, "commit")
	defer span.End()

	if input.OrderID == "" {
		return inventory.NewValidationError("order id is required")
	}
	reservation, err := c.reservations.Get(ctx, input.OrderID)
	if err != nil {
		metrics.ReservationsTotal.WithLabelValues("commit", "not_found").Inc()
		return err
	}
	switch reservation.Status {
	case inventory.StatusCommitted:
		// Idempotent re-invocation.
		metrics.ReservationsTotal.WithLabelValues("commit", "noop").Inc()
		return nil
	case inventory.StatusReleased:
		metrics.ReservationsTotal.WithLabelValues("commit", "invalid_transition").Inc()
		return fmt.Errorf("%w: order %s is %s", inventory.ErrInvalidTransition, input.OrderID, reservation.Status)
	}

	// Mark first: only the caller that wins the HELD -> COMMITTED transition
	// applies the ledger effects, so concurrent commits consume stock once.
	if err := c.reservations.MarkCommitted(ctx, input.OrderID); err != nil {
		if errors.Is(err, inventory.ErrInvalidTransition) {
			if current, gerr := c.reservations.Get(ctx, input.OrderID); gerr == nil && current.Status == inventory.StatusCommitted {
				metrics.ReservationsTotal.WithLabelValues("commit", "noop").Inc()
				return nil
			}
		}
		metrics.ReservationsTotal.WithLabelValues("commit", "invalid_transition").Inc()
		return err
	}

	for _, line := range reservation.Lines {
		if err := c.ledger.FinalizeReservedAsSold(ctx, line.SKU, line.Quantity); err != nil {
			metrics.ConsistencyErrorsTotal.Inc()
			log.Error().Err(err).Str("order_id", input.OrderID).Str("sku", line.SKU).
				Msg("failed to finalize reserved stock")
			return fmt.Errorf("%w: commit of order %s left sku %s unfinalized", inventory.ErrInternalConsistency, input.OrderID, line.SKU)
		}
	}
	invalidateLines(c.cache, reservation.Lines)
	metrics.ReservationsTotal.WithLabelValues("commit", "success").Inc()
	return nil
}

func invalidateLines(cache protocols.AvailabilityCache, lines []inventory.Line) {
	if cache == nil {
		return
	}
	skus := make([]string, 0, len(lines))
	for _, line := range lines {
		skus = append(skus, line.SKU)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.Invalidate(ctx, skus...); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate availability cache")
	}
}
