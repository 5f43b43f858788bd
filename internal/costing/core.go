package costing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantities and unit costs are stored at four decimal places.
const qtyPrecision = 4

// Tx is the transactional surface the costing functions require. Invoice
// posting embeds it so layer mutations commit or abort together with the
// journal entry.
type Tx interface {
	// LayersForUpdate returns the product's layers with remaining > 0,
	// oldest first with ties broken by id, locked for the transaction.
	LayersForUpdate(ctx context.Context, productID int64) ([]Layer, error)
	InsertLayer(ctx context.Context, l Layer) (Layer, error)
	SetLayerRemaining(ctx context.Context, layerID int64, remaining decimal.Decimal) error
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

// Receive creates a cost layer and records the inbound movement.
func Receive(ctx context.Context, tx Tx, productID int64, qty, unitCost decimal.Decimal, reference string) (Layer, error) {
	if !qty.IsPositive() || !qty.Equal(qty.Round(qtyPrecision)) {
		return Layer{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, qty)
	}
	if unitCost.IsNegative() || !unitCost.Equal(unitCost.Round(qtyPrecision)) {
		return Layer{}, fmt.Errorf("%w: %s", ErrInvalidUnitCost, unitCost)
	}
	layer, err := tx.InsertLayer(ctx, Layer{
		ProductID: productID,
		Quantity:  qty,
		Remaining: qty,
		UnitCost:  unitCost,
	})
	if err != nil {
		return Layer{}, err
	}
	_, err = tx.InsertMovement(ctx, Movement{
		ProductID: productID,
		Direction: DirectionIn,
		Quantity:  qty,
		UnitCost:  unitCost,
		Reference: reference,
	})
	if err != nil {
		return Layer{}, err
	}
	return layer, nil
}

// Consume depletes layers oldest first until qty is satisfied and records one
// outbound movement at the weighted-average unit cost. The availability check
// runs over locked rows, so two concurrent consumers cannot both take the
// same remainder; a shortfall aborts before any layer is touched.
func Consume(ctx context.Context, tx Tx, productID int64, qty decimal.Decimal, reference string) (ConsumeResult, error) {
	if !qty.IsPositive() || !qty.Equal(qty.Round(qtyPrecision)) {
		return ConsumeResult{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, qty)
	}
	layers, err := tx.LayersForUpdate(ctx, productID)
	if err != nil {
		return ConsumeResult{}, err
	}
	available := decimal.Zero
	for _, l := range layers {
		available = available.Add(l.Remaining)
	}
	if available.LessThan(qty) {
		return ConsumeResult{}, &InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	need := qty
	cost := decimal.Zero
	for _, l := range layers {
		if !need.IsPositive() {
			break
		}
		take := decimal.Min(l.Remaining, need)
		cost = cost.Add(take.Mul(l.UnitCost))
		if err := tx.SetLayerRemaining(ctx, l.ID, l.Remaining.Sub(take)); err != nil {
			return ConsumeResult{}, err
		}
		need = need.Sub(take)
	}
	avg := cost.Div(qty).Round(qtyPrecision)
	_, err = tx.InsertMovement(ctx, Movement{
		ProductID: productID,
		Direction: DirectionOut,
		Quantity:  qty,
		UnitCost:  avg,
		Reference: reference,
	})
	if err != nil {
		return ConsumeResult{}, err
	}
	return ConsumeResult{TotalCost: cost.Round(2), AvgUnitCost: avg}, nil
}
