package inventory

import "time"

// StockItem is the ledger row for one sellable SKU.
// Available is always Quantity - Reserved; every mutation keeps the three in step.
type StockItem struct {
	SKU               string
	Quantity          int
	Reserved          int
	Available         int
	LowStockThreshold int
}

// Line is one (sku, quantity) pair inside a reservation request.
type Line struct {
	SKU      string
	Quantity int
}

type Status string

const (
	StatusHeld      Status = "HELD"
	StatusCommitted Status = "COMMITTED"
	StatusReleased  Status = "RELEASED"
)

// Reservation records exactly what was decremented from availability for an
// order, so commit/release can reverse the stored lines instead of trusting
// whatever the caller sends later.
type Reservation struct {
	OrderID    string
	Status     Status
	Lines      []Line
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Terminal reports whether the reservation can no longer change state.
func (r *Reservation) Terminal() bool {
	return r.Status == StatusCommitted || r.Status == StatusReleased
}

// Crossing is emitted when a decrement takes a SKU from above its low-stock
// threshold to at-or-below it. Edge-triggered: one event per crossing, not one
// per call while already below.
type Crossing struct {
	SKU       string
	Available int
}

// ValidateLines rejects requests the ledger should never see.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return NewValidationError("at least one line is required")
	}
	for _, line := range lines {
		if line.SKU == "" {
			return NewValidationError("line sku must not be empty")
		}
		if line.Quantity <= 0 {
			return NewValidationError("line quantity must be positive")
		}
	}
	return nil
}
