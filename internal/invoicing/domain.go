// Package invoicing owns sales and purchase invoices and turns them into
// journal entries plus costing side effects, exactly once per invoice.
package invoicing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the two invoice tables.
type Kind string

const (
	KindSales    Kind = "SALES"
	KindPurchase Kind = "PURCHASE"
)

// Invoice is a sales or purchase invoice. PartyID references a customer for
// sales and a supplier for purchases. Once JournalEntryID is set the invoice
// and its items are immutable and Total is frozen.
type Invoice struct {
	ID             int64
	Kind           Kind
	Number         string
	PartyID        int64
	Date           time.Time
	Total          decimal.Decimal
	JournalEntryID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []Item
}

// Item is one invoice line. Quantities and unit prices carry four decimal
// places; the line amount is qty times price.
type Item struct {
	ID        int64
	InvoiceID int64
	ProductID int64
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
}

// ItemInput describes an invoice line on create/update.
type ItemInput struct {
	ProductID int64
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateInput groups fields to create an invoice.
type CreateInput struct {
	Kind    Kind
	PartyID int64
	Date    time.Time
	Items   []ItemInput
}

// UpdateInput replaces an unposted invoice's party, date, and items.
type UpdateInput struct {
	ID      int64
	Kind    Kind
	PartyID int64
	Date    time.Time
	Items   []ItemInput
}

var (
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("invoicing: invoice not found")
	// ErrAlreadyPosted indicates the invoice is already linked to an entry.
	ErrAlreadyPosted = errors.New("invoicing: invoice already posted")
	// ErrInvoicePosted indicates an edit attempt on a posted invoice.
	ErrInvoicePosted = errors.New("invoicing: posted invoice is immutable")
	// ErrNoItems indicates posting an invoice without line items.
	ErrNoItems = errors.New("invoicing: invoice has no items")
	// ErrZeroTotal indicates the recomputed total is not positive.
	ErrZeroTotal = errors.New("invoicing: invoice total must be positive")
	// ErrInvalidItem indicates a line item fails validation.
	ErrInvalidItem = errors.New("invoicing: invalid invoice item")
)

const pricePrecision = 4

func validateItems(items []ItemInput) error {
	for idx, it := range items {
		if it.ProductID == 0 {
			return fmt.Errorf("%w: item %d missing product", ErrInvalidItem, idx)
		}
		if !it.Qty.IsPositive() || !it.Qty.Equal(it.Qty.Round(pricePrecision)) {
			return fmt.Errorf("%w: item %d quantity", ErrInvalidItem, idx)
		}
		if it.UnitPrice.IsNegative() || !it.UnitPrice.Equal(it.UnitPrice.Round(pricePrecision)) {
			return fmt.Errorf("%w: item %d unit price", ErrInvalidItem, idx)
		}
	}
	return nil
}

// Validate ensures create input meets minimum criteria.
func (in CreateInput) Validate() error {
	if in.Kind != KindSales && in.Kind != KindPurchase {
		return fmt.Errorf("invoicing: unknown invoice kind %q", in.Kind)
	}
	if in.PartyID == 0 {
		return errors.New("invoicing: party required")
	}
	if in.Date.IsZero() {
		return errors.New("invoicing: date required")
	}
	return validateItems(in.Items)
}

// Validate ensures update input meets minimum criteria.
func (in UpdateInput) Validate() error {
	if in.ID == 0 {
		return errors.New("invoicing: invoice id required")
	}
	return CreateInput{Kind: in.Kind, PartyID: in.PartyID, Date: in.Date, Items: in.Items}.Validate()
}

// ItemsTotal recomputes the invoice total from its items: each line is qty
// times price, the sum rounded to currency precision.
func ItemsTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Qty.Mul(it.UnitPrice))
	}
	return total.Round(2)
}
