package get_stock

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/openmart/inventory/domain/inventory"
	"github.com/openmart/inventory/protocols"
)

// GetStock serves the read path, fronted by an optional cache. Concurrent
// misses for the same SKU collapse into a single ledger lookup.
type GetStock struct {
	ledger inventory.Ledger
	cache  protocols.AvailabilityCache
	group  singleflight.Group
}

func NewGetStock(ledger inventory.Ledger, cache protocols.AvailabilityCache) *GetStock {
	return &GetStock{ledger: ledger, cache: cache}
}

type Output struct {
	SKU       string
	Quantity  int
	Reserved  int
	Available int
}

func (g *GetStock) GetStock(ctx context.Context, sku string) (Output, error) {
	if sku == "" {
		return Output{}, inventory.NewValidationError("sku is required")
	}
	if g.cache != nil {
		if snapshot, err := g.cache.Get(ctx, sku); err != nil {
			log.Warn().Err(err).Str("sku", sku).Msg("availability cache read failed")
		} else if snapshot != nil {
			return Output{SKU: snapshot.SKU, Quantity: snapshot.Quantity, Reserved: snapshot.Reserved, Available: snapshot.Available}, nil
		}
	}

	value, err, _ := g.group.Do(sku, func() (interface{}, error) {
		item, err := g.ledger.GetAvailable(ctx, sku)
		if err != nil {
			return nil, err
		}
		if g.cache != nil {
			snapshot := &protocols.StockSnapshot{SKU: item.SKU, Quantity: item.Quantity, Reserved: item.Reserved, Available: item.Available}
			if err := g.cache.Set(ctx, snapshot); err != nil {
				log.Warn().Err(err).Str("sku", sku).Msg("availability cache write failed")
			}
		}
		return item, nil
	})
	if err != nil {
		return Output{}, err
	}
	item := value.(*inventory.StockItem)
	return Output{SKU: item.SKU, Quantity: item.Quantity, Reserved: item.Reserved, Available: item.Available}, nil
}
