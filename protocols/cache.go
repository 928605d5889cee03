package protocols

import "context"

// StockSnapshot is the cached view served by the read path.
type StockSnapshot struct {
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

// AvailabilityCache fronts the ledger on reads. Get returns (nil, nil) on a
// miss. Mutating flows call Invalidate for every SKU they touched.
type AvailabilityCache interface {
	Get(ctx context.Context, sku string) (*StockSnapshot, error)
	Set(ctx context.Context, snapshot *StockSnapshot) error
	Invalidate(ctx context.Context, skus ...string) error
}
