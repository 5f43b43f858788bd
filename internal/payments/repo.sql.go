package payments

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

const paymentColumns = `id, payment_type, voucher_number, customer_id, supplier_id, payment_date,
amount, cash_account_id, description, journal_entry_id, locked, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.Type, &p.VoucherNumber, &p.CustomerID, &p.SupplierID, &p.Date,
		&p.Amount, &p.CashAccountID, &p.Description, &p.JournalEntryID, &p.Locked, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

// Repository persists payment vouchers in PostgreSQL.
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

// GetPayment loads one voucher.
func (r *Repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

// ListPayments returns vouchers newest first, optionally only unposted ones.
func (r *Repository) ListPayments(ctx context.Context, unpostedOnly bool) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	if unpostedOnly {
		query += ` WHERE journal_entry_id IS NULL`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Type, &p.VoucherNumber, &p.CustomerID, &p.SupplierID, &p.Date,
			&p.Amount, &p.CashAccountID, &p.Description, &p.JournalEntryID, &p.Locked, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepository) PaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO payments
(payment_type, voucher_number, customer_id, supplier_id, payment_date, amount, cash_account_id, description, locked)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,FALSE)
RETURNING id, created_at, updated_at`,
		p.Type, p.VoucherNumber, p.CustomerID, p.SupplierID, p.Date, p.Amount, p.CashAccountID, p.Description).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) UpdatePayment(ctx context.Context, p Payment) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payments
SET voucher_number=$2, customer_id=$3, supplier_id=$4, payment_date=$5, amount=$6,
cash_account_id=$7, description=$8, updated_at=NOW()
WHERE id=$1 AND journal_entry_id IS NULL AND NOT locked`,
		p.ID, p.VoucherNumber, p.CustomerID, p.SupplierID, p.Date, p.Amount, p.CashAccountID, p.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentLocked
	}
	return nil
}

func (r *txRepository) LinkPayment(ctx context.Context, id int64, entryID int64) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE payments
SET journal_entry_id=$2, locked=TRUE, updated_at=NOW()
WHERE id=$1 AND journal_entry_id IS NULL`, id, entryID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM payments WHERE id=$1 AND journal_entry_id IS NULL AND NOT locked`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentLocked
	}
	return nil
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
