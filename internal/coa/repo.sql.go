package coa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/db"
)

const accountColumns = `id, code, name, type, parent_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// AccountByID loads an account through any pgx handle, usable inside foreign
// transactions.
func AccountByID(ctx context.Context, q db.Querier, id int64) (Account, error) {
	return scanAccount(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

// Repository persists the chart of accounts in PostgreSQL.
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

// ListAccounts returns accounts ordered by code.
func (r *Repository) ListAccounts(ctx context.Context, activeOnly bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if activeOnly {
		query += ` WHERE is_active`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAccount loads a single account by id.
func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	return AccountByID(ctx, r.pool, id)
}

// LoadControlAccounts reads the singleton posting configuration row. A missing
// row yields a zero value; posting flows surface MissingAccountError per role.
func (r *Repository) LoadControlAccounts(ctx context.Context) (ControlAccounts, error) {
	var c ControlAccounts
	err := r.pool.QueryRow(ctx, `SELECT
COALESCE(accounts_receivable_id, 0), COALESCE(sales_revenue_id, 0),
COALESCE(cogs_id, 0), COALESCE(inventory_id, 0),
COALESCE(accounts_payable_id, 0), COALESCE(purchases_id, 0),
COALESCE(cash_id, 0), COALESCE(retained_earnings_id, 0)
FROM accounting_config WHERE id = 1`).
		Scan(&c.AccountsReceivable, &c.SalesRevenue, &c.COGS, &c.Inventory,
			&c.AccountsPayable, &c.Purchases, &c.Cash, &c.RetainedEarnings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ControlAccounts{}, nil
		}
		return ControlAccounts{}, err
	}
	return c, nil
}

func (r *txRepository) AccountByID(ctx context.Context, id int64) (Account, error) {
	return AccountByID(ctx, r.tx, id)
}

func (r *txRepository) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_id, is_active)
VALUES ($1,$2,$3,$4,TRUE) RETURNING `+accountColumns, in.Code, in.Name, in.Type, in.ParentID)
	a, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, in UpdateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE accounts
SET name=$2, parent_id=$3, is_active=$4, updated_at=NOW()
WHERE id=$1 RETURNING `+accountColumns, in.ID, in.Name, in.ParentID, in.IsActive)
	return scanAccount(row)
}

func (r *txRepository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) HasJournalLines(ctx context.Context, accountID int64) (bool, error) {
	var used bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id=$1)`, accountID).Scan(&used)
	return used, err
}

func (r *txRepository) HasChildren(ctx context.Context, accountID int64) (bool, error) {
	var has bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE parent_id=$1)`, accountID).Scan(&has)
	return has, err
}
