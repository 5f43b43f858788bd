package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/ledgerline-erp/ledgerline-erp/internal/shared"
)

// ListFilter narrows entry listings.
type ListFilter struct {
	PeriodID int64
	Limit    int
	Offset   int
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
}

// TxRepository is the transactional repository surface.
type TxRepository interface {
	Tx
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates manual journal entry operations. Invoices and payments
// post through their own orchestrators, which call the package functions
// inside their own transactions.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Post creates a manual journal entry. A zero date defaults to today.
func (s *Service) Post(ctx context.Context, in PostingInput) (Entry, error) {
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = Post(ctx, tx, in)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, in.CreatedBy, "journal.post", entry)
	return entry, nil
}

// Reverse appends a cancelling entry for an existing one.
func (s *Service) Reverse(ctx context.Context, entryID, actorID int64) (Entry, error) {
	var reversal Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversal, err = Reverse(ctx, tx, entryID, actorID)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, actorID, "journal.reverse", reversal)
	return reversal, nil
}

// Delete removes an unreversed, unlinked entry in an open period.
func (s *Service) Delete(ctx context.Context, entryID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return Delete(ctx, tx, entryID)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "journal.delete",
			Entity:   "journal_entry",
			EntityID: strconv.FormatInt(entryID, 10),
			At:       s.now(),
		})
	}
	return nil
}

// List returns entries newest first, optionally filtered by period.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.repo.ListEntries(ctx, filter)
}

// Get returns one entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entry Entry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(entry.ID, 10),
		Meta:     map[string]any{"serial_number": entry.SerialNumber},
		At:       s.now(),
	})
}
