package masterdata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	customers map[int64]Customer
	suppliers map[int64]Supplier
	products  map[int64]Product
	usedIDs   map[int64]bool
	nextID    int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		customers: map[int64]Customer{},
		suppliers: map[int64]Supplier{},
		products:  map[int64]Product{},
		usedIDs:   map[int64]bool{},
	}
}

func (m *memRepo) ListCustomers(context.Context) ([]Customer, error) {
	out := make([]Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, nil
}

func (m *memRepo) GetCustomer(_ context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (m *memRepo) InsertCustomer(_ context.Context, in PartyInput) (Customer, error) {
	m.nextID++
	c := Customer{ID: m.nextID, Name: in.Name, Email: in.Email, Phone: in.Phone}
	m.customers[c.ID] = c
	return c, nil
}

func (m *memRepo) UpdateCustomer(_ context.Context, id int64, in PartyInput) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	c.Name, c.Email, c.Phone = in.Name, in.Email, in.Phone
	m.customers[id] = c
	return c, nil
}

func (m *memRepo) DeleteCustomer(_ context.Context, id int64) error {
	if _, ok := m.customers[id]; !ok {
		return ErrNotFound
	}
	delete(m.customers, id)
	return nil
}

func (m *memRepo) CustomerHasDocuments(_ context.Context, id int64) (bool, error) {
	return m.usedIDs[id], nil
}

func (m *memRepo) ListSuppliers(context.Context) ([]Supplier, error) {
	out := make([]Supplier, 0, len(m.suppliers))
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (m *memRepo) GetSupplier(_ context.Context, id int64) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (m *memRepo) InsertSupplier(_ context.Context, in PartyInput) (Supplier, error) {
	m.nextID++
	s := Supplier{ID: m.nextID, Name: in.Name, Email: in.Email, Phone: in.Phone}
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *memRepo) UpdateSupplier(_ context.Context, id int64, in PartyInput) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	s.Name, s.Email, s.Phone = in.Name, in.Email, in.Phone
	m.suppliers[id] = s
	return s, nil
}

func (m *memRepo) DeleteSupplier(_ context.Context, id int64) error {
	if _, ok := m.suppliers[id]; !ok {
		return ErrNotFound
	}
	delete(m.suppliers, id)
	return nil
}

func (m *memRepo) SupplierHasDocuments(_ context.Context, id int64) (bool, error) {
	return m.usedIDs[id], nil
}

func (m *memRepo) ListProducts(context.Context) ([]Product, error) {
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memRepo) InsertProduct(_ context.Context, in ProductInput) (Product, error) {
	for _, p := range m.products {
		if p.SKU == in.SKU {
			return Product{}, ErrDuplicateSKU
		}
	}
	m.nextID++
	p := Product{ID: m.nextID, SKU: in.SKU, Name: in.Name, IsActive: in.IsActive}
	m.products[p.ID] = p
	return p, nil
}

func (m *memRepo) UpdateProduct(_ context.Context, id int64, in ProductInput) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.SKU, p.Name, p.IsActive = in.SKU, in.Name, in.IsActive
	m.products[id] = p
	return p, nil
}

func (m *memRepo) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memRepo) ProductHasDocuments(_ context.Context, id int64) (bool, error) {
	return m.usedIDs[id], nil
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.CreateCustomer(context.Background(), PartyInput{Name: "  "})
	require.Error(t, err)

	_, err = svc.CreateProduct(context.Background(), ProductInput{SKU: "SKU-1"})
	require.Error(t, err)
}

func TestDuplicateSKURejected(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.CreateProduct(context.Background(), ProductInput{SKU: "SKU-1", Name: "Widget", IsActive: true})
	require.NoError(t, err)

	_, err = svc.CreateProduct(context.Background(), ProductInput{SKU: "SKU-1", Name: "Other", IsActive: true})
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestDeleteReferencedRecordFails(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	c, err := svc.CreateCustomer(context.Background(), PartyInput{Name: "Acme"})
	require.NoError(t, err)
	repo.usedIDs[c.ID] = true

	require.ErrorIs(t, svc.DeleteCustomer(context.Background(), c.ID), ErrInUse)

	repo.usedIDs[c.ID] = false
	require.NoError(t, svc.DeleteCustomer(context.Background(), c.ID))
	_, err = svc.GetCustomer(context.Background(), c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
