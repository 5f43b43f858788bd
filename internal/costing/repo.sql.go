package costing

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/db"
)

// LayersForUpdate loads and locks the consumable layers for a product in FIFO
// order. Callers must hold a transaction.
func LayersForUpdate(ctx context.Context, q db.Querier, productID int64) ([]Layer, error) {
	rows, err := q.Query(ctx, `SELECT id, product_id, quantity, remaining, unit_cost, created_at
FROM stock_layers WHERE product_id=$1 AND remaining > 0
ORDER BY created_at, id FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLayers(rows)
}

func collectLayers(rows pgx.Rows) ([]Layer, error) {
	var out []Layer
	for rows.Next() {
		var l Layer
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.Remaining, &l.UnitCost, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertLayer writes a new cost layer.
func InsertLayer(ctx context.Context, q db.Querier, l Layer) (Layer, error) {
	err := q.QueryRow(ctx, `INSERT INTO stock_layers (product_id, quantity, remaining, unit_cost)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`,
		l.ProductID, l.Quantity, l.Remaining, l.UnitCost).
		Scan(&l.ID, &l.CreatedAt)
	return l, err
}

// SetLayerRemaining updates a layer's remainder. The CHECK constraint on the
// column is the last line of defence against negative stock.
func SetLayerRemaining(ctx context.Context, q db.Querier, layerID int64, remaining decimal.Decimal) error {
	_, err := q.Exec(ctx, `UPDATE stock_layers SET remaining=$2 WHERE id=$1`, layerID, remaining)
	return err
}

// InsertMovement appends a movement audit row.
func InsertMovement(ctx context.Context, q db.Querier, m Movement) (Movement, error) {
	err := q.QueryRow(ctx, `INSERT INTO stock_movements (product_id, direction, quantity, unit_cost, reference)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
		m.ProductID, m.Direction, m.Quantity, m.UnitCost, m.Reference).
		Scan(&m.ID, &m.CreatedAt)
	return m, err
}

// Repository persists cost layers and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListLayers returns all layers for a product, oldest first.
func (r *Repository) ListLayers(ctx context.Context, productID int64) ([]Layer, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, quantity, remaining, unit_cost, created_at
FROM stock_layers WHERE product_id=$1 ORDER BY created_at, id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLayers(rows)
}

// ListMovements returns recent movements for a product, newest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, direction, quantity, unit_cost, reference, created_at
FROM stock_movements WHERE product_id=$1 ORDER BY id DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Direction, &m.Quantity, &m.UnitCost, &m.Reference, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepository) LayersForUpdate(ctx context.Context, productID int64) ([]Layer, error) {
	return LayersForUpdate(ctx, r.tx, productID)
}

func (r *txRepository) InsertLayer(ctx context.Context, l Layer) (Layer, error) {
	return InsertLayer(ctx, r.tx, l)
}

func (r *txRepository) SetLayerRemaining(ctx context.Context, layerID int64, remaining decimal.Decimal) error {
	return SetLayerRemaining(ctx, r.tx, layerID, remaining)
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	return InsertMovement(ctx, r.tx, m)
}
