package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/costing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline-erp/internal/sequence"
)

func tables(kind Kind) (invoices, items string) {
	if kind == KindSales {
		return "sales_invoices", "sales_invoice_items"
	}
	return "purchase_invoices", "purchase_invoice_items"
}

const invoiceColumns = `id, number, party_id, invoice_date, total, journal_entry_id, created_at, updated_at`

func scanInvoice(kind Kind, row pgx.Row) (Invoice, error) {
	inv := Invoice{Kind: kind}
	err := row.Scan(&inv.ID, &inv.Number, &inv.PartyID, &inv.Date, &inv.Total,
		&inv.JournalEntryID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func itemsFor(ctx context.Context, q db.Querier, kind Kind, invoiceID int64) ([]Item, error) {
	_, itemTable := tables(kind)
	rows, err := q.Query(ctx, `SELECT id, invoice_id, product_id, qty, unit_price
FROM `+itemTable+` WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Qty, &it.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Repository persists invoices in PostgreSQL.
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

// GetInvoice loads one invoice with its items.
func (r *Repository) GetInvoice(ctx context.Context, kind Kind, id int64) (Invoice, error) {
	invoiceTable, _ := tables(kind)
	inv, err := scanInvoice(kind, r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM `+invoiceTable+` WHERE id=$1`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = itemsFor(ctx, r.pool, kind, id)
	return inv, err
}

// ListInvoices returns invoices newest first, optionally only unposted ones.
func (r *Repository) ListInvoices(ctx context.Context, kind Kind, unpostedOnly bool) ([]Invoice, error) {
	invoiceTable, _ := tables(kind)
	query := `SELECT ` + invoiceColumns + ` FROM ` + invoiceTable
	if unpostedOnly {
		query += ` WHERE journal_entry_id IS NULL`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv := Invoice{Kind: kind}
		if err := rows.Scan(&inv.ID, &inv.Number, &inv.PartyID, &inv.Date, &inv.Total,
			&inv.JournalEntryID, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *txRepository) InvoiceForUpdate(ctx context.Context, kind Kind, id int64) (Invoice, error) {
	invoiceTable, _ := tables(kind)
	inv, err := scanInvoice(kind, r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM `+invoiceTable+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = itemsFor(ctx, r.tx, kind, id)
	return inv, err
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	invoiceTable, _ := tables(inv.Kind)
	err := r.tx.QueryRow(ctx, `INSERT INTO `+invoiceTable+` (number, party_id, invoice_date, total)
VALUES ($1,$2,$3,0) RETURNING id, created_at, updated_at`,
		inv.Number, inv.PartyID, inv.Date).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *txRepository) ReplaceItems(ctx context.Context, kind Kind, invoiceID int64, items []ItemInput) ([]Item, error) {
	_, itemTable := tables(kind)
	if _, err := r.tx.Exec(ctx, `DELETE FROM `+itemTable+` WHERE invoice_id=$1`, invoiceID); err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, in := range items {
		it := Item{InvoiceID: invoiceID, ProductID: in.ProductID, Qty: in.Qty, UnitPrice: in.UnitPrice}
		err := r.tx.QueryRow(ctx, `INSERT INTO `+itemTable+` (invoice_id, product_id, qty, unit_price)
VALUES ($1,$2,$3,$4) RETURNING id`, invoiceID, in.ProductID, in.Qty, in.UnitPrice).
			Scan(&it.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *txRepository) UpdateInvoiceHeader(ctx context.Context, kind Kind, id int64, partyID int64, date time.Time, total decimal.Decimal) error {
	invoiceTable, _ := tables(kind)
	tag, err := r.tx.Exec(ctx, `UPDATE `+invoiceTable+`
SET party_id=$2, invoice_date=$3, total=$4, updated_at=NOW() WHERE id=$1`, id, partyID, date, total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) SetInvoiceTotal(ctx context.Context, kind Kind, id int64, total decimal.Decimal) error {
	invoiceTable, _ := tables(kind)
	_, err := r.tx.Exec(ctx, `UPDATE `+invoiceTable+` SET total=$2, updated_at=NOW() WHERE id=$1`, id, total)
	return err
}

func (r *txRepository) LinkInvoice(ctx context.Context, kind Kind, id int64, entryID int64) (bool, error) {
	invoiceTable, _ := tables(kind)
	tag, err := r.tx.Exec(ctx, `UPDATE `+invoiceTable+`
SET journal_entry_id=$2, updated_at=NOW() WHERE id=$1 AND journal_entry_id IS NULL`, id, entryID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepository) DeleteInvoice(ctx context.Context, kind Kind, id int64) error {
	invoiceTable, itemTable := tables(kind)
	if _, err := r.tx.Exec(ctx, `DELETE FROM `+itemTable+` WHERE invoice_id=$1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM `+invoiceTable+` WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
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

func (r *txRepository) LayersForUpdate(ctx context.Context, productID int64) ([]costing.Layer, error) {
	return costing.LayersForUpdate(ctx, r.tx, productID)
}

func (r *txRepository) InsertLayer(ctx context.Context, l costing.Layer) (costing.Layer, error) {
	return costing.InsertLayer(ctx, r.tx, l)
}

func (r *txRepository) SetLayerRemaining(ctx context.Context, layerID int64, remaining decimal.Decimal) error {
	return costing.SetLayerRemaining(ctx, r.tx, layerID, remaining)
}

func (r *txRepository) InsertMovement(ctx context.Context, m costing.Movement) (costing.Movement, error) {
	return costing.InsertMovement(ctx, r.tx, m)
}
