package periods

import (
	"context"
	"time"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListPeriods(ctx context.Context) ([]Period, error)
	GetPeriod(ctx context.Context, id int64) (Period, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertPeriod(ctx context.Context, in CreatePeriodInput) (Period, error)
	RangeConflict(ctx context.Context, start, end time.Time, excludeID int64) (bool, error)
}

// Service manages the accounting period registry. Close/reopen live in the
// closing engine; this service only creates and lists windows.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the period service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create inserts a new open period after validating overlap.
func (s *Service) Create(ctx context.Context, in CreatePeriodInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		conflict, err := tx.RangeConflict(ctx, in.StartDate, in.EndDate, 0)
		if err != nil {
			return err
		}
		if conflict {
			return ErrPeriodOverlap
		}
		period, err = tx.InsertPeriod(ctx, in)
		return err
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// List returns all periods ordered by start date.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.ListPeriods(ctx)
}

// Get returns a single period.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.GetPeriod(ctx, id)
}
