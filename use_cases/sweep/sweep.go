package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmart/inventory/domain/inventory"
	"github.com/openmart/inventory/use_cases/release"
)

type releaser interface {
	Release(ctx context.Context, input release.Input) error
}

// Sweep releases holds that were never committed or released, so abandoned
// checkouts stop pinning stock. Expired holds go through the normal release
// path and therefore obey the state machine.
type Sweep struct {
	reservations inventory.Reservations
	releaser     releaser
	ttl          time.Duration
}

func NewSweep(reservations inventory.Reservations, releaser releaser, ttl time.Duration) *Sweep {
	return &Sweep{reservations: reservations, releaser: releaser, ttl: ttl}
}

// Run releases every expired hold once and returns how many it released.
func (s *Sweep) Run(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.ttl)
	orderIDs, err := s.reservations.ListExpiredHeld(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, orderID := range orderIDs {
		err := s.releaser.Release(ctx, release.Input{OrderID: orderID})
		if err != nil {
			// A commit or release can land between the listing and this call.
			if errors.Is(err, inventory.ErrInvalidTransition) || errors.Is(err, inventory.ErrNotFound) {
				continue
			}
			log.Error().Err(err).Str("order_id", orderID).Msg("failed to release expired hold")
			continue
		}
		log.Info().Str("order_id", orderID).Msg("released expired hold")
		released++
	}
	return released, nil
}

// Start runs the sweeper on a ticker until ctx is cancelled.
func (s *Sweep) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Run(ctx); err != nil {
					log.Error().Err(err).Msg("hold sweep failed")
				}
			}
		}
	}()
}
