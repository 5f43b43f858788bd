package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists master records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const partyColumns = `id, name, email, phone, created_at, updated_at`

func (r *Repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+partyColumns+` FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) InsertCustomer(ctx context.Context, in PartyInput) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (name, email, phone) VALUES ($1,$2,$3)
RETURNING `+partyColumns, in.Name, in.Email, in.Phone).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repository) UpdateCustomer(ctx context.Context, id int64, in PartyInput) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `UPDATE customers SET name=$2, email=$3, phone=$4, updated_at=NOW()
WHERE id=$1 RETURNING `+partyColumns, id, in.Name, in.Email, in.Phone).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) DeleteCustomer(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CustomerHasDocuments(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales_invoices WHERE party_id=$1)
OR EXISTS (SELECT 1 FROM payments WHERE customer_id=$1)`, id).Scan(&used)
	return used, err
}

func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+partyColumns+` FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *Repository) InsertSupplier(ctx context.Context, in PartyInput) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, email, phone) VALUES ($1,$2,$3)
RETURNING `+partyColumns, in.Name, in.Email, in.Phone).
		Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *Repository) UpdateSupplier(ctx context.Context, id int64, in PartyInput) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `UPDATE suppliers SET name=$2, email=$3, phone=$4, updated_at=NOW()
WHERE id=$1 RETURNING `+partyColumns, id, in.Name, in.Email, in.Phone).
		Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *Repository) DeleteSupplier(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SupplierHasDocuments(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_invoices WHERE party_id=$1)
OR EXISTS (SELECT 1 FROM payments WHERE supplier_id=$1)`, id).Scan(&used)
	return used, err
}

const productColumns = `id, sku, name, is_active, created_at, updated_at`

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) InsertProduct(ctx context.Context, in ProductInput) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, is_active) VALUES ($1,$2,$3)
RETURNING `+productColumns, in.SKU, in.Name, in.IsActive).
		Scan(&p.ID, &p.SKU, &p.Name, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return Product{}, ErrDuplicateSKU
	}
	return p, err
}

func (r *Repository) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `UPDATE products SET sku=$2, name=$3, is_active=$4, updated_at=NOW()
WHERE id=$1 RETURNING `+productColumns, id, in.SKU, in.Name, in.IsActive).
		Scan(&p.ID, &p.SKU, &p.Name, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if isUniqueViolation(err) {
		return Product{}, ErrDuplicateSKU
	}
	return p, err
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ProductHasDocuments(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales_invoice_items WHERE product_id=$1)
OR EXISTS (SELECT 1 FROM purchase_invoice_items WHERE product_id=$1)
OR EXISTS (SELECT 1 FROM stock_movements WHERE product_id=$1)`, id).Scan(&used)
	return used, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
