package closing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/shared"
)

// TxRepository is the transactional surface of the closing engine.
type TxRepository interface {
	ledger.Tx
	PeriodForUpdate(ctx context.Context, id int64) (periods.Period, error)
	// AccountActivity sums journal line debits and credits per revenue and
	// expense account over entries dated inside the window.
	AccountActivity(ctx context.Context, start, end time.Time) ([]AccountActivity, error)
	SetPeriodClosed(ctx context.Context, id int64, closed bool) error
	OpeningBalances(ctx context.Context, periodID int64) ([]OpeningBalance, error)
	UpsertOpeningBalance(ctx context.Context, in SetOpeningInput) (OpeningBalance, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListOpeningBalances(ctx context.Context, periodID int64) ([]OpeningBalance, error)
}

// ConfigPort loads the control-account configuration.
type ConfigPort interface {
	LoadControlAccounts(ctx context.Context) (coa.ControlAccounts, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Locker serialises close and reopen per period across instances.
type Locker interface {
	Acquire(ctx context.Context, periodID int64) (func(), error)
}

// Service runs period close, reopen, and opening balance posting.
type Service struct {
	repo   RepositoryPort
	config ConfigPort
	audit  AuditPort
	locker Locker
	now    func() time.Time
}

// NewService builds Service. locker may be nil in single-instance setups.
func NewService(repo RepositoryPort, config ConfigPort, audit AuditPort, locker Locker) *Service {
	return &Service{repo: repo, config: config, audit: audit, locker: locker, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) acquire(ctx context.Context, periodID int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, periodID)
}

// Close zeroes revenue and expense accounts into retained earnings and marks
// the period closed. The closing entry is dated at period end with reference
// CLOSE-{name}; a period with no activity closes without an entry. The
// returned entry is nil in that case.
func (s *Service) Close(ctx context.Context, periodID int64, actorID int64) (*ledger.Entry, error) {
	release, err := s.acquire(ctx, periodID)
	if err != nil {
		return nil, err
	}
	defer release()

	cfg, err := s.config.LoadControlAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var closingEntry *ledger.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.PeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if period.IsClosed {
			return ErrAlreadyClosed
		}
		activity, err := tx.AccountActivity(ctx, period.StartDate, period.EndDate)
		if err != nil {
			return err
		}
		lines, netIncome := closingLines(activity)
		if !netIncome.IsZero() {
			retained, err := cfg.Account(coa.RoleRetainedEarnings)
			if err != nil {
				return err
			}
			if netIncome.IsPositive() {
				lines = append(lines, ledger.LineInput{AccountID: retained, Credit: netIncome})
			} else {
				lines = append(lines, ledger.LineInput{AccountID: retained, Debit: netIncome.Neg()})
			}
		}
		// Zero activity closes the period without persisting an empty entry.
		if len(lines) > 0 {
			entry, err := ledger.Post(ctx, tx, ledger.PostingInput{
				Date:        period.EndDate,
				Description: fmt.Sprintf("Closing entry for %s", period.Name),
				Reference:   fmt.Sprintf("CLOSE-%s", period.Name),
				PeriodID:    period.ID,
				CreatedBy:   actorID,
				Lines:       lines,
			})
			if err != nil {
				return err
			}
			closingEntry = &entry
		}
		return tx.SetPeriodClosed(ctx, period.ID, true)
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "period.close", periodID, closingEntry)
	return closingEntry, nil
}

// closingLines builds the zeroing lines. A revenue account with net credit
// activity gets a debit of that net; an expense account with net debit
// activity gets a credit. Net income is the sum of those nets.
func closingLines(activity []AccountActivity) ([]ledger.LineInput, decimal.Decimal) {
	var lines []ledger.LineInput
	netIncome := decimal.Zero
	for _, a := range activity {
		switch a.Type {
		case coa.AccountTypeRevenue:
			net := a.CreditSum.Sub(a.DebitSum)
			if net.IsPositive() {
				lines = append(lines, ledger.LineInput{AccountID: a.AccountID, Debit: net})
				netIncome = netIncome.Add(net)
			}
		case coa.AccountTypeExpense:
			net := a.DebitSum.Sub(a.CreditSum)
			if net.IsPositive() {
				lines = append(lines, ledger.LineInput{AccountID: a.AccountID, Credit: net})
				netIncome = netIncome.Sub(net)
			}
		}
	}
	return lines, netIncome
}

// Reopen flips the closed flag back. It does not reverse the closing entry;
// cancelling it is the operator's own call, through the ledger.
func (s *Service) Reopen(ctx context.Context, periodID int64, actorID int64) error {
	release, err := s.acquire(ctx, periodID)
	if err != nil {
		return err
	}
	defer release()

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.PeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if !period.IsClosed {
			return ErrNotClosed
		}
		return tx.SetPeriodClosed(ctx, period.ID, false)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "period.reopen", periodID, nil)
	return nil
}

// SetOpening upserts one opening balance row for an open period.
func (s *Service) SetOpening(ctx context.Context, in SetOpeningInput) (OpeningBalance, error) {
	if err := in.Validate(); err != nil {
		return OpeningBalance{}, err
	}
	var row OpeningBalance
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.PeriodForUpdate(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if period.IsClosed {
			return periods.ErrPeriodClosed
		}
		row, err = tx.UpsertOpeningBalance(ctx, in)
		return err
	})
	if err != nil {
		return OpeningBalance{}, err
	}
	return row, nil
}

// OpeningBalances lists the rows staged for a period.
func (s *Service) OpeningBalances(ctx context.Context, periodID int64) ([]OpeningBalance, error) {
	return s.repo.ListOpeningBalances(ctx, periodID)
}

// PostOpening posts the staged opening balances as one entry dated at period
// start with reference OPEN-{name}, once per period. The ledger's balance
// check rejects unbalanced rows.
func (s *Service) PostOpening(ctx context.Context, periodID int64, actorID int64) (ledger.Entry, error) {
	var entry ledger.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.PeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if period.IsClosed {
			return periods.ErrPeriodClosed
		}
		reference := fmt.Sprintf("OPEN-%s", period.Name)
		exists, err := tx.ReferenceExists(ctx, reference)
		if err != nil {
			return err
		}
		if exists {
			return ErrOpeningPosted
		}
		rows, err := tx.OpeningBalances(ctx, periodID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrOpeningEmpty
		}
		var lines []ledger.LineInput
		for _, ob := range rows {
			lines = append(lines, ledger.LineInput{AccountID: ob.AccountID, Debit: ob.Debit, Credit: ob.Credit})
		}
		entry, err = ledger.Post(ctx, tx, ledger.PostingInput{
			Date:        period.StartDate,
			Description: fmt.Sprintf("Opening balances %s", period.Name),
			Reference:   reference,
			PeriodID:    period.ID,
			CreatedBy:   actorID,
			Lines:       lines,
		})
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	s.recordAudit(ctx, actorID, "period.post-opening", periodID, &entry)
	return entry, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, periodID int64, entry *ledger.Entry) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{}
	if entry != nil {
		meta["serial_number"] = entry.SerialNumber
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "accounting_period",
		EntityID: strconv.FormatInt(periodID, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
