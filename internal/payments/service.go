package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/sequence"
	"github.com/ledgerline-erp/ledgerline-erp/internal/shared"
)

// TxRepository is the transactional surface the orchestrator requires.
type TxRepository interface {
	ledger.Tx
	PaymentForUpdate(ctx context.Context, id int64) (Payment, error)
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	UpdatePayment(ctx context.Context, p Payment) error
	// LinkPayment sets journal_entry_id and the locked flag in one update,
	// only when the link is still null, and reports whether it was won.
	LinkPayment(ctx context.Context, id int64, entryID int64) (bool, error)
	DeletePayment(ctx context.Context, id int64) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context, unpostedOnly bool) ([]Payment, error)
}

// ConfigPort loads the control-account configuration.
type ConfigPort interface {
	LoadControlAccounts(ctx context.Context) (coa.ControlAccounts, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates payment voucher lifecycle and posting.
type Service struct {
	repo   RepositoryPort
	config ConfigPort
	audit  AuditPort
	now    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, config ConfigPort, audit AuditPort) *Service {
	return &Service{repo: repo, config: config, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func docTypeFor(t Type) string {
	if t == TypeReceipt {
		return sequence.DocTypeReceipt
	}
	return sequence.DocTypeDisbursement
}

// Create inserts a voucher and assigns its period-keyed voucher number. The
// date must fall inside an open period; the period name becomes part of the
// serial.
func (s *Service) Create(ctx context.Context, in CreateInput) (Payment, error) {
	if err := in.Validate(); err != nil {
		return Payment{}, err
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := periods.EnsureOpen(ctx, tx, in.Date, 0)
		if err != nil {
			return err
		}
		n, err := tx.NextDocumentNumber(ctx, docTypeFor(in.Type), period.ID)
		if err != nil {
			return err
		}
		payment, err = tx.InsertPayment(ctx, Payment{
			Type:          in.Type,
			VoucherNumber: sequence.DocumentNumber(docTypeFor(in.Type), period.Name, n),
			CustomerID:    in.CustomerID,
			SupplierID:    in.SupplierID,
			Date:          in.Date,
			Amount:        in.Amount,
			CashAccountID: in.CashAccountID,
			Description:   in.Description,
		})
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// Update modifies an unposted, unlocked voucher.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Payment, error) {
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.PaymentForUpdate(ctx, in.ID)
		if err != nil {
			return err
		}
		if current.JournalEntryID != nil || current.Locked {
			return ErrPaymentLocked
		}
		if err := validateParty(current.Type, in.CustomerID, in.SupplierID); err != nil {
			return err
		}
		if err := validateAmount(in.Amount); err != nil {
			return err
		}
		if _, err := periods.EnsureOpen(ctx, tx, in.Date, 0); err != nil {
			return err
		}
		current.CustomerID = in.CustomerID
		current.SupplierID = in.SupplierID
		current.Date = in.Date
		current.Amount = in.Amount
		current.CashAccountID = in.CashAccountID
		current.Description = in.Description
		payment = current
		return tx.UpdatePayment(ctx, current)
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// Delete removes an unposted, unlocked voucher.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.PaymentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.JournalEntryID != nil || current.Locked {
			return ErrPaymentLocked
		}
		return tx.DeletePayment(ctx, id)
	})
}

// Get returns one voucher.
func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// List returns vouchers, optionally only those without a journal link.
func (s *Service) List(ctx context.Context, unpostedOnly bool) ([]Payment, error) {
	return s.repo.ListPayments(ctx, unpostedOnly)
}

// Post turns the voucher into a journal entry, exactly once. Receipts debit
// cash and credit receivables; disbursements debit payables and credit cash.
// On success the journal link and the locked flag are set in the same update.
func (s *Service) Post(ctx context.Context, paymentID int64, actorID int64) (ledger.Entry, error) {
	cfg, err := s.config.LoadControlAccounts(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	var entry ledger.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.PaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.JournalEntryID != nil {
			entry, err = tx.EntryByID(ctx, *payment.JournalEntryID)
			return err
		}
		entry, err = postPayment(ctx, tx, payment, cfg, actorID)
		return err
	})
	if errors.Is(err, ErrAlreadyPosted) {
		return s.postedEntry(ctx, paymentID)
	}
	if err != nil {
		return ledger.Entry{}, err
	}
	s.recordAudit(ctx, actorID, "payment.post", paymentID, entry.SerialNumber)
	return entry, nil
}

func postPayment(ctx context.Context, tx TxRepository, payment Payment, cfg coa.ControlAccounts, actorID int64) (ledger.Entry, error) {
	if err := validateParty(payment.Type, payment.CustomerID, payment.SupplierID); err != nil {
		return ledger.Entry{}, err
	}
	if err := validateAmount(payment.Amount); err != nil {
		return ledger.Entry{}, err
	}
	period, err := periods.EnsureOpen(ctx, tx, payment.Date, 0)
	if err != nil {
		return ledger.Entry{}, err
	}
	if payment.VoucherNumber == "" {
		n, err := tx.NextDocumentNumber(ctx, docTypeFor(payment.Type), period.ID)
		if err != nil {
			return ledger.Entry{}, err
		}
		payment.VoucherNumber = sequence.DocumentNumber(docTypeFor(payment.Type), period.Name, n)
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return ledger.Entry{}, err
		}
	}
	cashAccount := payment.CashAccountID
	if cashAccount == 0 {
		cashAccount, err = cfg.Account(coa.RoleCash)
		if err != nil {
			return ledger.Entry{}, err
		}
	}
	var lines []ledger.LineInput
	switch payment.Type {
	case TypeReceipt:
		ar, err := cfg.Account(coa.RoleAccountsReceivable)
		if err != nil {
			return ledger.Entry{}, err
		}
		lines = []ledger.LineInput{
			{AccountID: cashAccount, Debit: payment.Amount, Note: payment.VoucherNumber},
			{AccountID: ar, Credit: payment.Amount, Note: payment.VoucherNumber},
		}
	case TypeDisbursement:
		ap, err := cfg.Account(coa.RoleAccountsPayable)
		if err != nil {
			return ledger.Entry{}, err
		}
		lines = []ledger.LineInput{
			{AccountID: ap, Debit: payment.Amount, Note: payment.VoucherNumber},
			{AccountID: cashAccount, Credit: payment.Amount, Note: payment.VoucherNumber},
		}
	default:
		return ledger.Entry{}, fmt.Errorf("payments: unknown payment type %q", payment.Type)
	}
	entry, err := ledger.Post(ctx, tx, ledger.PostingInput{
		Date:        payment.Date,
		Description: describePayment(payment),
		Reference:   payment.VoucherNumber,
		CreatedBy:   actorID,
		Lines:       lines,
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	won, err := tx.LinkPayment(ctx, payment.ID, entry.ID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !won {
		return ledger.Entry{}, ErrAlreadyPosted
	}
	return entry, nil
}

func describePayment(p Payment) string {
	if p.Type == TypeReceipt {
		return fmt.Sprintf("Receipt %s", p.VoucherNumber)
	}
	return fmt.Sprintf("Disbursement %s", p.VoucherNumber)
}

// Reverse cancels a posted voucher's journal entry through the ledger. The
// voucher stays linked and locked; the entry pair nets to zero.
func (s *Service) Reverse(ctx context.Context, paymentID int64, actorID int64) (ledger.Entry, error) {
	var reversal ledger.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.PaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.JournalEntryID == nil {
			return ErrPaymentNotFound
		}
		reversal, err = ledger.Reverse(ctx, tx, *payment.JournalEntryID, actorID)
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	s.recordAudit(ctx, actorID, "payment.reverse", paymentID, reversal.SerialNumber)
	return reversal, nil
}

func (s *Service) postedEntry(ctx context.Context, paymentID int64) (ledger.Entry, error) {
	var entry ledger.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.PaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.JournalEntryID == nil {
			return ErrPaymentNotFound
		}
		entry, err = tx.EntryByID(ctx, *payment.JournalEntryID)
		return err
	})
	return entry, err
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, paymentID int64, serial string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payment",
		EntityID: strconv.FormatInt(paymentID, 10),
		Meta:     map[string]any{"serial_number": serial},
		At:       s.now(),
	})
}
