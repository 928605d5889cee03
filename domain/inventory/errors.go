package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown SKUs and unknown order ids.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists guards against duplicate reservations for the same order.
	ErrAlreadyExists = errors.New("reservation already exists")
	// ErrInvalidTransition is returned when a terminal reservation is asked to
	// move to the other terminal state.
	ErrInvalidTransition = errors.New("invalid reservation transition")
	// ErrInternalConsistency means a ledger invariant was violated. It indicates
	// a bug or reservation/ledger drift and must reach operators, not callers.
	ErrInternalConsistency = errors.New("internal consistency error")
	// ErrValidation covers malformed requests.
	ErrValidation = errors.New("validation error")
)

// InsufficientStockError carries the available count so the caller can react.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for sku %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

func NewValidationError(details string) error {
	return fmt.Errorf("%w: %s", ErrValidation, details)
}

// IsInsufficientStock reports whether err is an insufficient stock failure.
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}
