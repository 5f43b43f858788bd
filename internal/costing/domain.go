// Package costing maintains FIFO cost layers per product. Receipts create
// layers, consumption depletes them oldest first, and every operation leaves
// one movement row so cost history stays reconstructable.
package costing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction enumerates stock movement directions.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// Layer is one inbound quantity at one unit cost. Remaining only ever
// decreases and never drops below zero; depleted layers are kept as audit
// trail.
type Layer struct {
	ID        int64
	ProductID int64
	Quantity  decimal.Decimal
	Remaining decimal.Decimal
	UnitCost  decimal.Decimal
	CreatedAt time.Time
}

// Movement is the append-only audit record of a costing operation. Outbound
// movements carry the weighted-average unit cost across consumed layers.
type Movement struct {
	ID        int64
	ProductID int64
	Direction Direction
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Reference string
	CreatedAt time.Time
}

// ConsumeResult reports the cost of a consumption.
type ConsumeResult struct {
	TotalCost   decimal.Decimal
	AvgUnitCost decimal.Decimal
}

var (
	// ErrInsufficientStock indicates consumption exceeds available quantity.
	ErrInsufficientStock = errors.New("costing: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive or over-precise quantity.
	ErrInvalidQuantity = errors.New("costing: invalid quantity")
	// ErrInvalidUnitCost indicates a negative or over-precise unit cost.
	ErrInvalidUnitCost = errors.New("costing: invalid unit cost")
)

// InsufficientStockError names the shortfall for a failed consumption.
type InsufficientStockError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("costing: insufficient stock for product %d: requested %s, available %s",
		e.ProductID, e.Requested, e.Available)
}

// Is matches ErrInsufficientStock so callers can errors.Is on the class.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
