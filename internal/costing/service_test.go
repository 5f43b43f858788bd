package costing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memRepo applies each transaction against a copy of its state and publishes
// the copy only on success, mirroring the abort-wholesale behaviour of the
// real transaction.
type memRepo struct {
	layers    []Layer
	movements []Movement
	nextID    int64
	clock     time.Time
}

func newCostingRepo() *memRepo {
	return &memRepo{clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

type memTx struct {
	repo *memRepo
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := *r
	snapshot.layers = append([]Layer(nil), r.layers...)
	snapshot.movements = append([]Movement(nil), r.movements...)
	if err := fn(ctx, &memTx{repo: &snapshot}); err != nil {
		return err
	}
	*r = snapshot
	return nil
}

func (r *memRepo) ListLayers(_ context.Context, productID int64) ([]Layer, error) {
	var out []Layer
	for _, l := range r.layers {
		if l.ProductID == productID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memRepo) ListMovements(_ context.Context, productID int64, limit int) ([]Movement, error) {
	var out []Movement
	for i := len(r.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if r.movements[i].ProductID == productID {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

func (t *memTx) LayersForUpdate(_ context.Context, productID int64) ([]Layer, error) {
	var out []Layer
	for _, l := range t.repo.layers {
		if l.ProductID == productID && l.Remaining.IsPositive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *memTx) InsertLayer(_ context.Context, l Layer) (Layer, error) {
	t.repo.nextID++
	l.ID = t.repo.nextID
	l.CreatedAt = t.repo.clock
	t.repo.clock = t.repo.clock.Add(time.Minute)
	t.repo.layers = append(t.repo.layers, l)
	return l, nil
}

func (t *memTx) SetLayerRemaining(_ context.Context, layerID int64, remaining decimal.Decimal) error {
	for i := range t.repo.layers {
		if t.repo.layers[i].ID == layerID {
			t.repo.layers[i].Remaining = remaining
			return nil
		}
	}
	return ErrInsufficientStock
}

func (t *memTx) InsertMovement(_ context.Context, m Movement) (Movement, error) {
	t.repo.nextID++
	m.ID = t.repo.nextID
	m.CreatedAt = t.repo.clock
	t.repo.movements = append(t.repo.movements, m)
	return m, nil
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestReceiveThenConsumeSingleLayer(t *testing.T) {
	repo := newCostingRepo()
	svc := NewService(repo)
	ctx := context.Background()

	layer, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("100"), UnitCost: qty("0.20"), Reference: "PI-000001"})
	require.NoError(t, err)
	require.True(t, layer.Remaining.Equal(qty("100")))

	result, err := svc.Consume(ctx, ConsumeInput{ProductID: 1, Qty: qty("60"), Reference: "SI-000001"})
	require.NoError(t, err)
	require.Equal(t, "12.00", result.TotalCost.StringFixed(2))
	require.True(t, result.AvgUnitCost.Equal(qty("0.20")))

	layers, err := svc.Layers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	require.True(t, layers[0].Remaining.Equal(qty("40")))

	movements, err := svc.Movements(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, DirectionOut, movements[0].Direction)
	require.Equal(t, DirectionIn, movements[1].Direction)
}

func TestConsumeDepletesOldestFirst(t *testing.T) {
	repo := newCostingRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("10"), UnitCost: qty("1.00")})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("10"), UnitCost: qty("2.00")})
	require.NoError(t, err)

	// 10 x 1.00 + 5 x 2.00 = 20.00, avg 20.00/15 = 1.3333
	result, err := svc.Consume(ctx, ConsumeInput{ProductID: 1, Qty: qty("15")})
	require.NoError(t, err)
	require.Equal(t, "20.00", result.TotalCost.StringFixed(2))
	require.True(t, result.AvgUnitCost.Equal(qty("1.3333")))

	layers, err := svc.Layers(ctx, 1)
	require.NoError(t, err)
	require.True(t, layers[0].Remaining.IsZero(), "oldest layer must be exhausted first")
	require.True(t, layers[1].Remaining.Equal(qty("5")))
}

func TestConsumeTiesBrokenByInsertionOrder(t *testing.T) {
	repo := newCostingRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("5"), UnitCost: qty("1.00")})
	require.NoError(t, err)
	repo.clock = first.CreatedAt // next layer gets the identical timestamp
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("5"), UnitCost: qty("3.00")})
	require.NoError(t, err)

	result, err := svc.Consume(ctx, ConsumeInput{ProductID: 1, Qty: qty("5")})
	require.NoError(t, err)
	require.Equal(t, "5.00", result.TotalCost.StringFixed(2))
}

func TestConsumeInsufficientStockIsAtomic(t *testing.T) {
	repo := newCostingRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("10"), UnitCost: qty("1.00")})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, ConsumeInput{ProductID: 1, Qty: qty("25")})
	require.ErrorIs(t, err, ErrInsufficientStock)
	var shortfall *InsufficientStockError
	require.ErrorAs(t, err, &shortfall)
	require.True(t, shortfall.Requested.Equal(qty("25")))
	require.True(t, shortfall.Available.Equal(qty("10")))

	// Nothing may have been taken and no movement written.
	layers, err := svc.Layers(ctx, 1)
	require.NoError(t, err)
	require.True(t, layers[0].Remaining.Equal(qty("10")))
	movements, err := svc.Movements(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)
}

func TestReceiveValidation(t *testing.T) {
	svc := NewService(newCostingRepo())
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("0"), UnitCost: qty("1.00")})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("1.00001"), UnitCost: qty("1.00")})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("1"), UnitCost: qty("-0.50")})
	require.ErrorIs(t, err, ErrInvalidUnitCost)
	_, err = svc.Consume(ctx, ConsumeInput{ProductID: 1, Qty: qty("-1")})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestOnHand(t *testing.T) {
	repo := newCostingRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("10"), UnitCost: qty("1.00")})
	require.NoError(t, err)
	_, err = svc.Receive(ctx, ReceiveInput{ProductID: 1, Qty: qty("2.5"), UnitCost: qty("2.00")})
	require.NoError(t, err)

	onHand, err := svc.OnHand(ctx, 1)
	require.NoError(t, err)
	require.True(t, onHand.Equal(qty("12.5")))
}
