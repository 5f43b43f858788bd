package ledger

import (
	"context"
	"fmt"

	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/sequence"
)

// Tx is the transactional surface the posting functions require. Orchestrators
// embed it in their own transaction repositories so an invoice or payment
// posting shares one transaction with the entry it creates.
type Tx interface {
	periods.Store
	NextDocumentNumber(ctx context.Context, docType string, periodID int64) (int64, error)
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
	EntryByID(ctx context.Context, id int64) (Entry, error)
	SetEntryReversed(ctx context.Context, id int64) error
	EntryHasDocument(ctx context.Context, id int64) (bool, error)
	DeleteEntry(ctx context.Context, id int64) error
}

// Post validates and writes a journal entry inside the caller's transaction.
// Manual entries may post without a covering period; the serial then carries
// the NO-PERIOD segment. Dates inside a closed period are rejected.
func Post(ctx context.Context, tx Tx, in PostingInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	period, found, err := periods.EnsureOpenOrAbsent(ctx, tx, in.Date, in.PeriodID)
	if err != nil {
		return Entry{}, err
	}
	var (
		periodID   int64
		periodName string
		periodRef  *int64
	)
	if found {
		periodID = period.ID
		periodName = period.Name
		periodRef = &period.ID
	}
	n, err := tx.NextDocumentNumber(ctx, sequence.DocTypeJournal, periodID)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		SerialNumber: sequence.DocumentNumber(sequence.DocTypeJournal, periodName, n),
		Date:         in.Date,
		Description:  in.Description,
		Reference:    in.Reference,
		PeriodID:     periodRef,
		ReversesID:   in.ReversesID,
		CreatedBy:    in.CreatedBy,
	}
	for _, l := range in.Lines {
		entry.Lines = append(entry.Lines, Line{
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Note:      l.Note,
		})
	}
	return tx.InsertEntry(ctx, entry)
}

// Reverse appends a cancelling entry with every line's debit and credit
// swapped, dated identically to the original, and marks the original as
// reversed. Reversal chains and double reversals are rejected, and the
// original's period must still be open.
func Reverse(ctx context.Context, tx Tx, entryID int64, actorID int64) (Entry, error) {
	original, err := tx.EntryByID(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	if original.ReversesID != nil {
		return Entry{}, ErrIsAReversal
	}
	if original.IsReversed {
		return Entry{}, ErrAlreadyReversed
	}
	in := PostingInput{
		Date:        original.Date,
		Description: fmt.Sprintf("Reversal of %s", original.SerialNumber),
		Reference:   fmt.Sprintf("REV-%s", original.SerialNumber),
		CreatedBy:   actorID,
		ReversesID:  &original.ID,
	}
	if original.PeriodID != nil {
		in.PeriodID = *original.PeriodID
	}
	for _, l := range original.Lines {
		in.Lines = append(in.Lines, LineInput{
			AccountID: l.AccountID,
			Debit:     l.Credit,
			Credit:    l.Debit,
			Note:      l.Note,
		})
	}
	reversal, err := Post(ctx, tx, in)
	if err != nil {
		return Entry{}, err
	}
	if err := tx.SetEntryReversed(ctx, original.ID); err != nil {
		return Entry{}, err
	}
	return reversal, nil
}

// Delete removes an unreversed manual entry while its period is open. Entries
// linked to a business document are protected; the document must be handled
// first. Entries without a period are deletable at any time.
func Delete(ctx context.Context, tx Tx, entryID int64) error {
	entry, err := tx.EntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.PeriodID != nil {
		period, err := tx.PeriodByID(ctx, *entry.PeriodID)
		if err != nil {
			return err
		}
		if period.IsClosed {
			return periods.ErrPeriodClosed
		}
	}
	if entry.IsReversed {
		return ErrAlreadyReversed
	}
	if entry.ReversesID != nil {
		return ErrIsAReversal
	}
	linked, err := tx.EntryHasDocument(ctx, entry.ID)
	if err != nil {
		return err
	}
	if linked {
		return ErrEntryHasDocument
	}
	return tx.DeleteEntry(ctx, entry.ID)
}
