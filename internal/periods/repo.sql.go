package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/db"
)

const periodColumns = `id, name, start_date, end_date, is_closed, created_at, updated_at`

// ByID loads a period through any pgx handle, usable inside foreign transactions.
func ByID(ctx context.Context, q db.Querier, id int64) (Period, error) {
	var p Period
	err := q.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.IsClosed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

// Covering resolves the period containing the date, latest start first.
func Covering(ctx context.Context, q db.Querier, date time.Time) (Period, error) {
	var p Period
	err := q.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods
WHERE start_date <= $1 AND end_date >= $1 ORDER BY start_date DESC LIMIT 1`, date).
		Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.IsClosed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNoPeriodCovers
		}
		return Period{}, err
	}
	return p, nil
}

// Repository persists accounting periods in PostgreSQL.
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

// ListPeriods returns all periods ordered by start date.
func (r *Repository) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.IsClosed, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPeriod loads a single period by id.
func (r *Repository) GetPeriod(ctx context.Context, id int64) (Period, error) {
	return ByID(ctx, r.pool, id)
}

func (r *txRepository) InsertPeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	var p Period
	err := r.tx.QueryRow(ctx, `INSERT INTO accounting_periods (name, start_date, end_date, is_closed)
VALUES ($1,$2,$3,FALSE) RETURNING `+periodColumns, in.Name, in.StartDate, in.EndDate).
		Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.IsClosed, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) RangeConflict(ctx context.Context, start, end time.Time, excludeID int64) (bool, error) {
	var conflict bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM accounting_periods WHERE start_date <= $2 AND end_date >= $1 AND id <> $3)`, start, end, excludeID).
		Scan(&conflict)
	return conflict, err
}
