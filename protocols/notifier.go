package protocols

import "context"

// Notifier delivers the low-stock signal to the notifications service.
// Delivery is best-effort: callers log failures and never propagate them.
type Notifier interface {
	LowStock(ctx context.Context, sku string, available int) error
}
