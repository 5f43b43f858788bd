package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/db"
	"github.com/ledgerline-erp/ledgerline-erp/internal/sequence"
)

const entryColumns = `id, serial_number, entry_date, description, reference, period_id, is_reversed, reverses_id, created_by, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.SerialNumber, &e.Date, &e.Description, &e.Reference,
		&e.PeriodID, &e.IsReversed, &e.ReversesID, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// InsertEntry writes the entry header and its lines through any pgx handle.
// Orchestrator repositories call this inside their own transactions.
func InsertEntry(ctx context.Context, q db.Querier, e Entry) (Entry, error) {
	err := q.QueryRow(ctx, `INSERT INTO journal_entries
(serial_number, entry_date, description, reference, period_id, is_reversed, reverses_id, created_by)
VALUES ($1,$2,$3,$4,$5,FALSE,$6,$7)
RETURNING id, created_at`,
		e.SerialNumber, e.Date, e.Description, e.Reference, e.PeriodID, e.ReversesID, e.CreatedBy).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	for i := range e.Lines {
		line := &e.Lines[i]
		line.EntryID = e.ID
		err := q.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, note)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			line.EntryID, line.AccountID, line.Debit, line.Credit, line.Note).
			Scan(&line.ID)
		if err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

// EntryByID loads an entry with its lines, locking the header row so
// concurrent reversals serialise.
func EntryByID(ctx context.Context, q db.Querier, id int64) (Entry, error) {
	e, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Entry{}, err
	}
	e.Lines, err = linesForEntry(ctx, q, id)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func linesForEntry(ctx context.Context, q db.Querier, entryID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, note
FROM journal_lines WHERE entry_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit, &l.Note); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SetEntryReversed flips the is_reversed flag.
func SetEntryReversed(ctx context.Context, q db.Querier, id int64) error {
	tag, err := q.Exec(ctx, `UPDATE journal_entries SET is_reversed=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// EntryHasDocument reports whether an invoice or payment links to the entry.
func EntryHasDocument(ctx context.Context, q db.Querier, id int64) (bool, error) {
	var linked bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales_invoices WHERE journal_entry_id=$1)
OR EXISTS (SELECT 1 FROM purchase_invoices WHERE journal_entry_id=$1)
OR EXISTS (SELECT 1 FROM payments WHERE journal_entry_id=$1)`, id).Scan(&linked)
	return linked, err
}

// DeleteEntry removes the entry; lines go with it via ON DELETE CASCADE.
func DeleteEntry(ctx context.Context, q db.Querier, id int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Repository persists journal entries in PostgreSQL.
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

// ListEntries returns entries newest first with their lines.
func (r *Repository) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries`
	args := []any{}
	if filter.PeriodID != 0 {
		query += ` WHERE period_id=$1`
		args = append(args, filter.PeriodID)
	}
	query += ` ORDER BY id DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	skipped := 0
	for rows.Next() {
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		var e Entry
		if err := rows.Scan(&e.ID, &e.SerialNumber, &e.Date, &e.Description, &e.Reference,
			&e.PeriodID, &e.IsReversed, &e.ReversesID, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines, err = linesForEntry(ctx, r.pool, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetEntry loads a single entry with lines.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return Entry{}, err
	}
	e.Lines, err = linesForEntry(ctx, r.pool, id)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
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

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	return InsertEntry(ctx, r.tx, e)
}

func (r *txRepository) EntryByID(ctx context.Context, id int64) (Entry, error) {
	return EntryByID(ctx, r.tx, id)
}

func (r *txRepository) SetEntryReversed(ctx context.Context, id int64) error {
	return SetEntryReversed(ctx, r.tx, id)
}

func (r *txRepository) EntryHasDocument(ctx context.Context, id int64) (bool, error) {
	return EntryHasDocument(ctx, r.tx, id)
}

func (r *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	return DeleteEntry(ctx, r.tx, id)
}
