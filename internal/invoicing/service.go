package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/costing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/sequence"
	"github.com/ledgerline-erp/ledgerline-erp/internal/shared"
)

// TxRepository is the transactional surface the orchestrator requires. It
// embeds the ledger and costing surfaces so one transaction carries the
// invoice, its journal entry, and every layer mutation.
type TxRepository interface {
	ledger.Tx
	costing.Tx
	InvoiceForUpdate(ctx context.Context, kind Kind, id int64) (Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	ReplaceItems(ctx context.Context, kind Kind, invoiceID int64, items []ItemInput) ([]Item, error)
	UpdateInvoiceHeader(ctx context.Context, kind Kind, id int64, partyID int64, date time.Time, total decimal.Decimal) error
	SetInvoiceTotal(ctx context.Context, kind Kind, id int64, total decimal.Decimal) error
	// LinkInvoice sets journal_entry_id only when it is still null and
	// reports whether the link was won.
	LinkInvoice(ctx context.Context, kind Kind, id int64, entryID int64) (bool, error)
	DeleteInvoice(ctx context.Context, kind Kind, id int64) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, kind Kind, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, kind Kind, unpostedOnly bool) ([]Invoice, error)
}

// ConfigPort loads the control-account configuration. Resolved once per
// posting call so a config change mid-flight cannot split an entry across two
// configurations.
type ConfigPort interface {
	LoadControlAccounts(ctx context.Context) (coa.ControlAccounts, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates invoice lifecycle and posting.
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

func docTypeFor(kind Kind) string {
	if kind == KindSales {
		return sequence.DocTypeSalesInvoice
	}
	return sequence.DocTypePurchaseInvoice
}

// Create inserts an invoice with its items and assigns the next invoice
// number. The date must fall inside an open period.
func (s *Service) Create(ctx context.Context, in CreateInput) (Invoice, error) {
	if err := in.Validate(); err != nil {
		return Invoice{}, err
	}
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := periods.EnsureOpen(ctx, tx, in.Date, 0); err != nil {
			return err
		}
		n, err := tx.NextDocumentNumber(ctx, docTypeFor(in.Kind), 0)
		if err != nil {
			return err
		}
		invoice, err = tx.InsertInvoice(ctx, Invoice{
			Kind:    in.Kind,
			Number:  sequence.InvoiceNumber(docTypeFor(in.Kind), n),
			PartyID: in.PartyID,
			Date:    in.Date,
		})
		if err != nil {
			return err
		}
		invoice.Items, err = tx.ReplaceItems(ctx, in.Kind, invoice.ID, in.Items)
		if err != nil {
			return err
		}
		invoice.Total = ItemsTotal(invoice.Items)
		return tx.SetInvoiceTotal(ctx, in.Kind, invoice.ID, invoice.Total)
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// Update replaces an unposted invoice's header and items and recomputes the
// total. Posted invoices are immutable.
func (s *Service) Update(ctx context.Context, in UpdateInput) (Invoice, error) {
	if err := in.Validate(); err != nil {
		return Invoice{}, err
	}
	var invoice Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.InvoiceForUpdate(ctx, in.Kind, in.ID)
		if err != nil {
			return err
		}
		if current.JournalEntryID != nil {
			return ErrInvoicePosted
		}
		if _, err := periods.EnsureOpen(ctx, tx, in.Date, 0); err != nil {
			return err
		}
		items, err := tx.ReplaceItems(ctx, in.Kind, in.ID, in.Items)
		if err != nil {
			return err
		}
		total := ItemsTotal(items)
		if err := tx.UpdateInvoiceHeader(ctx, in.Kind, in.ID, in.PartyID, in.Date, total); err != nil {
			return err
		}
		invoice = current
		invoice.PartyID = in.PartyID
		invoice.Date = in.Date
		invoice.Total = total
		invoice.Items = items
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// Delete removes an unposted invoice.
func (s *Service) Delete(ctx context.Context, kind Kind, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.InvoiceForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if current.JournalEntryID != nil {
			return ErrInvoicePosted
		}
		return tx.DeleteInvoice(ctx, kind, id)
	})
}

// Get returns one invoice with items.
func (s *Service) Get(ctx context.Context, kind Kind, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, kind, id)
}

// List returns invoices, optionally only those without a journal link.
func (s *Service) List(ctx context.Context, kind Kind, unpostedOnly bool) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, kind, unpostedOnly)
}

// Post turns the invoice into a journal entry, exactly once. A second call
// returns the existing entry unchanged. Everything runs in one transaction:
// the period guard, the total recomputation, the entry, the costing side
// effects, and the conditional link.
func (s *Service) Post(ctx context.Context, kind Kind, invoiceID int64, actorID int64) (ledger.Entry, error) {
	cfg, err := s.config.LoadControlAccounts(ctx)
	if err != nil {
		return ledger.Entry{}, err
	}
	var entry ledger.Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.InvoiceForUpdate(ctx, kind, invoiceID)
		if err != nil {
			return err
		}
		if invoice.JournalEntryID != nil {
			entry, err = tx.EntryByID(ctx, *invoice.JournalEntryID)
			return err
		}
		entry, err = postInvoice(ctx, tx, invoice, cfg, actorID)
		return err
	})
	if errors.Is(err, ErrAlreadyPosted) {
		// Lost the link race; the winner's entry is the result.
		return s.postedEntry(ctx, kind, invoiceID)
	}
	if err != nil {
		return ledger.Entry{}, err
	}
	s.recordAudit(ctx, actorID, "invoice.post", kind, invoiceID, entry.SerialNumber)
	return entry, nil
}

func postInvoice(ctx context.Context, tx TxRepository, invoice Invoice, cfg coa.ControlAccounts, actorID int64) (ledger.Entry, error) {
	if _, err := periods.EnsureOpen(ctx, tx, invoice.Date, 0); err != nil {
		return ledger.Entry{}, err
	}
	if len(invoice.Items) == 0 {
		return ledger.Entry{}, ErrNoItems
	}
	total := ItemsTotal(invoice.Items)
	if !total.IsPositive() {
		return ledger.Entry{}, ErrZeroTotal
	}
	if err := tx.SetInvoiceTotal(ctx, invoice.Kind, invoice.ID, total); err != nil {
		return ledger.Entry{}, err
	}

	var lines []ledger.LineInput
	switch invoice.Kind {
	case KindSales:
		ar, err := cfg.Account(coa.RoleAccountsReceivable)
		if err != nil {
			return ledger.Entry{}, err
		}
		sales, err := cfg.Account(coa.RoleSalesRevenue)
		if err != nil {
			return ledger.Entry{}, err
		}
		lines = []ledger.LineInput{
			{AccountID: ar, Debit: total, Note: invoice.Number},
			{AccountID: sales, Credit: total, Note: invoice.Number},
		}
		// Cost of goods posts only when both sides are configured.
		if cfg.COGS != 0 && cfg.Inventory != 0 {
			cost := decimal.Zero
			for _, item := range invoice.Items {
				result, err := costing.Consume(ctx, tx, item.ProductID, item.Qty, invoice.Number)
				if err != nil {
					return ledger.Entry{}, err
				}
				cost = cost.Add(result.TotalCost)
			}
			if cost.IsPositive() {
				lines = append(lines,
					ledger.LineInput{AccountID: cfg.COGS, Debit: cost, Note: invoice.Number},
					ledger.LineInput{AccountID: cfg.Inventory, Credit: cost, Note: invoice.Number},
				)
			}
		}
	case KindPurchase:
		debitAccount, err := cfg.Account(coa.RoleInventory)
		if errors.Is(err, coa.ErrMissingControlAccount) {
			debitAccount, err = cfg.Account(coa.RolePurchases)
		}
		if err != nil {
			return ledger.Entry{}, err
		}
		ap, err := cfg.Account(coa.RoleAccountsPayable)
		if err != nil {
			return ledger.Entry{}, err
		}
		lines = []ledger.LineInput{
			{AccountID: debitAccount, Debit: total, Note: invoice.Number},
			{AccountID: ap, Credit: total, Note: invoice.Number},
		}
		for _, item := range invoice.Items {
			if _, err := costing.Receive(ctx, tx, item.ProductID, item.Qty, item.UnitPrice, invoice.Number); err != nil {
				return ledger.Entry{}, err
			}
		}
	default:
		return ledger.Entry{}, fmt.Errorf("invoicing: unknown invoice kind %q", invoice.Kind)
	}

	entry, err := ledger.Post(ctx, tx, ledger.PostingInput{
		Date:        invoice.Date,
		Description: describeInvoice(invoice),
		Reference:   invoice.Number,
		CreatedBy:   actorID,
		Lines:       lines,
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	won, err := tx.LinkInvoice(ctx, invoice.Kind, invoice.ID, entry.ID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if !won {
		return ledger.Entry{}, ErrAlreadyPosted
	}
	return entry, nil
}

func describeInvoice(invoice Invoice) string {
	if invoice.Kind == KindSales {
		return fmt.Sprintf("Sales invoice %s", invoice.Number)
	}
	return fmt.Sprintf("Purchase invoice %s", invoice.Number)
}

// Reverse cancels a posted invoice's journal entry through the ledger. The
// invoice keeps its link; the entry pair nets to zero.
func (s *Service) Reverse(ctx context.Context, kind Kind, invoiceID int64, actorID int64) (ledger.Entry, error) {
	var reversal ledger.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.InvoiceForUpdate(ctx, kind, invoiceID)
		if err != nil {
			return err
		}
		if invoice.JournalEntryID == nil {
			return ErrInvoiceNotFound
		}
		reversal, err = ledger.Reverse(ctx, tx, *invoice.JournalEntryID, actorID)
		return err
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	s.recordAudit(ctx, actorID, "invoice.reverse", kind, invoiceID, reversal.SerialNumber)
	return reversal, nil
}

func (s *Service) postedEntry(ctx context.Context, kind Kind, invoiceID int64) (ledger.Entry, error) {
	var entry ledger.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.InvoiceForUpdate(ctx, kind, invoiceID)
		if err != nil {
			return err
		}
		if invoice.JournalEntryID == nil {
			return ErrInvoiceNotFound
		}
		entry, err = tx.EntryByID(ctx, *invoice.JournalEntryID)
		return err
	})
	return entry, err
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, kind Kind, invoiceID int64, serial string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(invoiceID, 10),
		Meta:     map[string]any{"kind": string(kind), "serial_number": serial},
		At:       s.now(),
	})
}
