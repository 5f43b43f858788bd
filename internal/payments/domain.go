// Package payments owns receipt and disbursement vouchers and posts each one
// into the ledger exactly once.
package payments

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates payment voucher types.
type Type string

const (
	TypeReceipt      Type = "RECEIPT"
	TypeDisbursement Type = "DISBURSEMENT"
)

// Payment is a cash receipt (from a customer) or disbursement (to a
// supplier). Once JournalEntryID is set or Locked is true, no field changes.
type Payment struct {
	ID             int64
	Type           Type
	VoucherNumber  string
	CustomerID     *int64
	SupplierID     *int64
	Date           time.Time
	Amount         decimal.Decimal
	CashAccountID  int64
	Description    string
	JournalEntryID *int64
	Locked         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateInput groups fields to create a payment voucher.
type CreateInput struct {
	Type          Type
	CustomerID    *int64
	SupplierID    *int64
	Date          time.Time
	Amount        decimal.Decimal
	CashAccountID int64
	Description   string
}

// UpdateInput carries mutable voucher fields for unposted vouchers.
type UpdateInput struct {
	ID            int64
	CustomerID    *int64
	SupplierID    *int64
	Date          time.Time
	Amount        decimal.Decimal
	CashAccountID int64
	Description   string
}

var (
	// ErrPaymentNotFound indicates a missing voucher.
	ErrPaymentNotFound = errors.New("payments: payment not found")
	// ErrAlreadyPosted indicates the voucher is already linked to an entry.
	ErrAlreadyPosted = errors.New("payments: payment already posted")
	// ErrPaymentLocked indicates an edit attempt on a locked voucher.
	ErrPaymentLocked = errors.New("payments: locked payment is immutable")
	// ErrPartyMismatch indicates the party does not match the voucher type.
	ErrPartyMismatch = errors.New("payments: party must match payment type")
	// ErrInvalidAmount indicates a non-positive or over-precise amount.
	ErrInvalidAmount = errors.New("payments: amount must be positive at currency precision")
)

// validateParty enforces the exactly-one-party rule: receipts reference a
// customer, disbursements a supplier, never both.
func validateParty(t Type, customerID, supplierID *int64) error {
	switch t {
	case TypeReceipt:
		if customerID == nil || *customerID == 0 || supplierID != nil {
			return ErrPartyMismatch
		}
	case TypeDisbursement:
		if supplierID == nil || *supplierID == 0 || customerID != nil {
			return ErrPartyMismatch
		}
	default:
		return fmt.Errorf("payments: unknown payment type %q", t)
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// Validate ensures create input meets minimum criteria.
func (in CreateInput) Validate() error {
	if err := validateParty(in.Type, in.CustomerID, in.SupplierID); err != nil {
		return err
	}
	if in.Date.IsZero() {
		return errors.New("payments: date required")
	}
	return validateAmount(in.Amount)
}
