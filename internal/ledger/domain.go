// Package ledger creates, reverses, and deletes balanced double-entry
// journal entries. Entries are append-only once posted; correction happens
// through reversal, never through edits.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is a posted journal entry. SerialNumber is assigned once at posting
// and never changes. PeriodID is nil when no accounting period covered the
// entry date at posting time.
type Entry struct {
	ID           int64
	SerialNumber string
	Date         time.Time
	Description  string
	Reference    string
	PeriodID     *int64
	IsReversed   bool
	ReversesID   *int64
	CreatedBy    int64
	CreatedAt    time.Time
	Lines        []Line
}

// Line carries a debit or credit amount against one account. Exactly one of
// Debit/Credit is positive, the other zero.
type Line struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Note      string
}

// LineInput describes a journal line for posting.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Note      string
}

// PostingInput groups the fields required to create a journal entry.
// ReversesID is set by Reverse only; callers posting business documents
// leave it nil.
type PostingInput struct {
	Date        time.Time
	Description string
	Reference   string
	PeriodID    int64
	CreatedBy   int64
	ReversesID  *int64
	Lines       []LineInput
}

var (
	// ErrUnbalanced indicates total debits differ from total credits.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrInvalidLine indicates a line violates the one-positive-side rule.
	ErrInvalidLine = errors.New("ledger: invalid journal line")
	// ErrTooFewLines indicates fewer than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrAlreadyReversed indicates the entry was reversed before.
	ErrAlreadyReversed = errors.New("ledger: entry already reversed")
	// ErrIsAReversal indicates the entry is itself a reversal.
	ErrIsAReversal = errors.New("ledger: entry is a reversal")
	// ErrEntryHasDocument indicates a business document links to the entry.
	ErrEntryHasDocument = errors.New("ledger: entry linked to a document")
)

// Validate enforces the double-entry rules before any row is written. Amounts
// must already be at currency precision; balance comparison is exact decimal
// equality, never float.
func (in PostingInput) Validate() error {
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debits := decimal.Zero
	credits := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("%w: line %d missing account", ErrInvalidLine, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", ErrInvalidLine, idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d must set exactly one of debit or credit", ErrInvalidLine, idx)
		}
		amount := line.Debit.Add(line.Credit)
		if !amount.Equal(amount.Round(2)) {
			return fmt.Errorf("%w: line %d amount exceeds currency precision", ErrInvalidLine, idx)
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return ErrUnbalanced
	}
	return nil
}
