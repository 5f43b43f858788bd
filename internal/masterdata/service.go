package masterdata

import "context"

// RepositoryPort abstracts persistence for master records.
type RepositoryPort interface {
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	InsertCustomer(ctx context.Context, in PartyInput) (Customer, error)
	UpdateCustomer(ctx context.Context, id int64, in PartyInput) (Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	CustomerHasDocuments(ctx context.Context, id int64) (bool, error)

	ListSuppliers(ctx context.Context) ([]Supplier, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	InsertSupplier(ctx context.Context, in PartyInput) (Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, in PartyInput) (Supplier, error)
	DeleteSupplier(ctx context.Context, id int64) error
	SupplierHasDocuments(ctx context.Context, id int64) (bool, error)

	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	InsertProduct(ctx context.Context, in ProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ProductHasDocuments(ctx context.Context, id int64) (bool, error)
}

// Service exposes master record CRUD with delete protection.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the masterdata service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) CreateCustomer(ctx context.Context, in PartyInput) (Customer, error) {
	if err := in.Validate(); err != nil {
		return Customer{}, err
	}
	return s.repo.InsertCustomer(ctx, in)
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, in PartyInput) (Customer, error) {
	if err := in.Validate(); err != nil {
		return Customer{}, err
	}
	return s.repo.UpdateCustomer(ctx, id, in)
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	used, err := s.repo.CustomerHasDocuments(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrInUse
	}
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *Service) CreateSupplier(ctx context.Context, in PartyInput) (Supplier, error) {
	if err := in.Validate(); err != nil {
		return Supplier{}, err
	}
	return s.repo.InsertSupplier(ctx, in)
}

func (s *Service) UpdateSupplier(ctx context.Context, id int64, in PartyInput) (Supplier, error) {
	if err := in.Validate(); err != nil {
		return Supplier{}, err
	}
	return s.repo.UpdateSupplier(ctx, id, in)
}

func (s *Service) DeleteSupplier(ctx context.Context, id int64) error {
	used, err := s.repo.SupplierHasDocuments(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrInUse
	}
	return s.repo.DeleteSupplier(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if err := in.Validate(); err != nil {
		return Product{}, err
	}
	return s.repo.InsertProduct(ctx, in)
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	if err := in.Validate(); err != nil {
		return Product{}, err
	}
	return s.repo.UpdateProduct(ctx, id, in)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	used, err := s.repo.ProductHasDocuments(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return ErrInUse
	}
	return s.repo.DeleteProduct(ctx, id)
}
