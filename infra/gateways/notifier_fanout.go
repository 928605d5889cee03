package gateways

import (
	"context"
	"errors"

	"github.com/openmart/inventory/protocols"
)

// NotifierFanout delivers the same event to every configured sink.
type NotifierFanout struct {
	notifiers []protocols.Notifier
}

func NewNotifierFanout(notifiers ...protocols.Notifier) *NotifierFanout {
	return &NotifierFanout{notifiers: notifiers}
}

func (n *NotifierFanout) LowStock(ctx context.Context, sku string, available int) error {
	var errs []error
	for _, notifier := range n.notifiers {
		if err := notifier.LowStock(ctx, sku, available); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
