// Package closing zeroes revenue and expense accounts into retained earnings
// at period end, freezes the period, and manages per-period opening balances.
package closing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
)

// AccountActivity aggregates one account's debit and credit sums over a
// period's date window. Only revenue and expense accounts participate in the
// close.
type AccountActivity struct {
	AccountID int64
	Type      coa.AccountType
	DebitSum  decimal.Decimal
	CreditSum decimal.Decimal
}

// OpeningBalance is one account's carried-in balance for a period. Exactly
// one of Debit/Credit is positive.
type OpeningBalance struct {
	ID        int64
	PeriodID  int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	CreatedAt time.Time
}

// SetOpeningInput upserts one opening balance row.
type SetOpeningInput struct {
	PeriodID  int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

var (
	// ErrAlreadyClosed indicates a second close of the same period.
	ErrAlreadyClosed = errors.New("closing: period already closed")
	// ErrNotClosed indicates reopening a period that is open.
	ErrNotClosed = errors.New("closing: period is not closed")
	// ErrOpeningPosted indicates opening balances were already posted.
	ErrOpeningPosted = errors.New("closing: opening balances already posted")
	// ErrOpeningEmpty indicates no opening balance rows exist for the period.
	ErrOpeningEmpty = errors.New("closing: no opening balances to post")
	// ErrInvalidOpening indicates an opening row violates the one-side rule.
	ErrInvalidOpening = errors.New("closing: opening balance must set exactly one of debit or credit")
)

// Validate ensures exactly one positive side at currency precision.
func (in SetOpeningInput) Validate() error {
	if in.PeriodID == 0 || in.AccountID == 0 {
		return errors.New("closing: period and account required")
	}
	if in.Debit.IsNegative() || in.Credit.IsNegative() {
		return ErrInvalidOpening
	}
	if in.Debit.IsPositive() == in.Credit.IsPositive() {
		return ErrInvalidOpening
	}
	amount := in.Debit.Add(in.Credit)
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidOpening
	}
	return nil
}
