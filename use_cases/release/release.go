package release

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

// Release cancels a hold and returns the stored lines to the available pool.
type Release struct {
	ledger       inventory.Ledger
	reservations inventory.Reservations
	cache        protocols.AvailabilityCache
}

func NewRelease(ledger inventory.Ledger, reservations inventory.Reservations, cache protocols.AvailabilityCache) *Release {
	return &Release{ledger: ledger, reservations: reservations, cache: cache}
}

type Input struct {
	OrderID string
}

func (r *Release) Release(ctx context.Context, input Input) error {
	ctx, span := tracing.Start(ctx, "release")
	defer span.End()

	if input.OrderID == "" {
		return inventory.NewValidationError("order id is required")
	}
	reservation, err := r.reservations.Get(ctx, input.OrderID)
	if err != nil {
		metrics.ReservationsTotal.WithLabelValues("release", "not_found").Inc()
		return err
	}
	switch reservation.Status {
	case inventory.StatusReleased:
		// Idempotent re-invocation.
		metrics.ReservationsTotal.WithLabelValues("release", "noop").Inc()
		return nil
	case inventory.StatusCommitted:
		metrics.ReservationsTotal.WithLabelValues("release", "invalid_transition").Inc()
		return fmt.Errorf("%w: order %s is %s", inventory.ErrInvalidTransition, input.OrderID, reservation.Status)
	}

	// Mark first so only one of several concurrent releases restores the stock.
	if err := r.reservations.MarkReleased(ctx, input.OrderID); err != nil {
		if errors.Is(err, inventory.ErrInvalidTransition) {
			if current, gerr := r.reservations.Get(ctx, input.OrderID); gerr == nil && current.Status == inventory.StatusReleased {
				metrics.ReservationsTotal.WithLabelValues("release", "noop").Inc()
				return nil
			}
		}
		metrics.ReservationsTotal.WithLabelValues("release", "invalid_transition").Inc()
		return err
	}

	for _, line := range reservation.Lines {
		if err := r.ledger.RestoreAvailable(ctx, line.SKU, line.Quantity); err != nil {
			metrics.ConsistencyErrorsTotal.Inc()
			log.Error().Err(err).Str("order_id", input.OrderID).Str("sku", line.SKU).
				Msg("failed to restore reserved stock")
			return fmt.Errorf("%w: release of order %s left sku %s unrestored", inventory.ErrInternalConsistency, input.OrderID, line.SKU)
		}
	}
	invalidateLines(r.cache, reservation.Lines)
	metrics.ReservationsTotal.WithLabelValues("release", "success").Inc()
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
