package closing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline-erp/internal/sequence"
)

// Repository persists closing state in PostgreSQL.
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

// ListOpeningBalances returns staged opening rows for a period.
func (r *Repository) ListOpeningBalances(ctx context.Context, periodID int64) ([]OpeningBalance, error) {
	return openingBalances(ctx, r.pool, periodID)
}

func openingBalances(ctx context.Context, q db.Querier, periodID int64) ([]OpeningBalance, error) {
	rows, err := q.Query(ctx, `SELECT id, period_id, account_id, debit, credit, created_at
FROM opening_balances WHERE period_id=$1 ORDER BY account_id`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpeningBalance
	for rows.Next() {
		var ob OpeningBalance
		if err := rows.Scan(&ob.ID, &ob.PeriodID, &ob.AccountID, &ob.Debit, &ob.Credit, &ob.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ob)
	}
	return out, rows.Err()
}

func (r *txRepository) PeriodForUpdate(ctx context.Context, id int64) (periods.Period, error) {
	var p periods.Period
	err := r.tx.QueryRow(ctx, `SELECT id, name, start_date, end_date, is_closed, created_at, updated_at
FROM accounting_periods WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.IsClosed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, periods.ErrPeriodNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) AccountActivity(ctx context.Context, start, end time.Time) ([]AccountActivity, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.type, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM accounts a
JOIN journal_lines l ON l.account_id = a.id
JOIN journal_entries e ON e.id = l.entry_id
WHERE a.type IN ('REVENUE','EXPENSE') AND e.entry_date BETWEEN $1 AND $2
GROUP BY a.id, a.type
ORDER BY a.id`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var a AccountActivity
		if err := rows.Scan(&a.AccountID, &a.Type, &a.DebitSum, &a.CreditSum); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) SetPeriodClosed(ctx context.Context, id int64, closed bool) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounting_periods SET is_closed=$2, updated_at=NOW() WHERE id=$1`, id, closed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return periods.ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) OpeningBalances(ctx context.Context, periodID int64) ([]OpeningBalance, error) {
	return openingBalances(ctx, r.tx, periodID)
}

func (r *txRepository) UpsertOpeningBalance(ctx context.Context, in SetOpeningInput) (OpeningBalance, error) {
	var ob OpeningBalance
	err := r.tx.QueryRow(ctx, `INSERT INTO opening_balances (period_id, account_id, debit, credit)
VALUES ($1,$2,$3,$4)
ON CONFLICT (period_id, account_id) DO UPDATE SET debit=EXCLUDED.debit, credit=EXCLUDED.credit
RETURNING id, period_id, account_id, debit, credit, created_at`,
		in.PeriodID, in.AccountID, in.Debit, in.Credit).
		Scan(&ob.ID, &ob.PeriodID, &ob.AccountID, &ob.Debit, &ob.Credit, &ob.CreatedAt)
	return ob, err
}

func (r *txRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE reference=$1)`, reference).Scan(&exists)
	return exists, err
}

func (r *txRepository) PeriodByID(ctx context.Context, id int64) (periods.Period, error) {
	return periods.ByID(ctx, r.tx, id)
}

func (r *txRepository) PeriodCovering(ctx context.Context, date time.Time) (periods.Period, error) {
	return periods.Covering(ctx, r.tx, date)
}

func (r *txRepository) NextDocumentNumber(ctx context.Context, docType string, periodID int64) (int64, error) {
	return sequence.Next(ctx, r.tx, docType, periodID)
}

func (r *txRepository) InsertEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	return ledger.InsertEntry(ctx, r.tx, e)
}

func (r *txRepository) EntryByID(ctx context.Context, id int64) (ledger.Entry, error) {
	return ledger.EntryByID(ctx, r.tx, id)
}

func (r *txRepository) SetEntryReversed(ctx context.Context, id int64) error {
	return ledger.SetEntryReversed(ctx, r.tx, id)
}

func (r *txRepository) EntryHasDocument(ctx context.Context, id int64) (bool, error) {
	return ledger.EntryHasDocument(ctx, r.tx, id)
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	return ledger.DeleteEntry(ctx, r.tx, id)
}
