package costing

import (
	"context"

	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListLayers(ctx context.Context, productID int64) ([]Layer, error)
	ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error)
}

// TxRepository is the transactional repository surface.
type TxRepository interface {
	Tx
}

// ReceiveInput describes an inbound stock receipt.
type ReceiveInput struct {
	ProductID int64
	Qty       decimal.Decimal
	UnitCost  decimal.Decimal
	Reference string
}

// ConsumeInput describes an outbound stock consumption.
type ConsumeInput struct {
	ProductID int64
	Qty       decimal.Decimal
	Reference string
}

// Service exposes costing operations for direct stock adjustments. Invoice
// posting bypasses the service and calls the package functions inside its own
// transaction.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Receive records an inbound receipt in its own transaction.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (Layer, error) {
	var layer Layer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		layer, err = Receive(ctx, tx, in.ProductID, in.Qty, in.UnitCost, in.Reference)
		return err
	})
	if err != nil {
		return Layer{}, err
	}
	return layer, nil
}

// Consume depletes stock in its own transaction.
func (s *Service) Consume(ctx context.Context, in ConsumeInput) (ConsumeResult, error) {
	var result ConsumeResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = Consume(ctx, tx, in.ProductID, in.Qty, in.Reference)
		return err
	})
	if err != nil {
		return ConsumeResult{}, err
	}
	return result, nil
}

// Layers returns all layers for a product, oldest first.
func (s *Service) Layers(ctx context.Context, productID int64) ([]Layer, error) {
	return s.repo.ListLayers(ctx, productID)
}

// Movements returns recent movements for a product, newest first.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

// OnHand sums remaining quantity across a product's layers.
func (s *Service) OnHand(ctx context.Context, productID int64) (decimal.Decimal, error) {
	layers, err := s.repo.ListLayers(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range layers {
		total = total.Add(l.Remaining)
	}
	return total, nil
}
