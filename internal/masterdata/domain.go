// Package masterdata manages the customers, suppliers, and products that
// invoices and payments reference.
package masterdata

import (
	"errors"
	"strings"
	"time"
)

// Customer is a party that receives sales invoices.
type Customer struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Supplier is a party that issues purchase invoices.
type Supplier struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is a stock-tracked item sold and purchased on invoice lines.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var (
	// ErrNotFound indicates an unknown master record id.
	ErrNotFound = errors.New("masterdata: record not found")
	// ErrDuplicateSKU indicates a product SKU collision.
	ErrDuplicateSKU = errors.New("masterdata: sku already exists")
	// ErrInUse indicates the record is referenced by documents and cannot be deleted.
	ErrInUse = errors.New("masterdata: record is referenced by documents")
)

// PartyInput covers customer and supplier writes.
type PartyInput struct {
	Name  string
	Email string
	Phone string
}

// Validate checks party fields.
func (in PartyInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("masterdata: name required")
	}
	return nil
}

// ProductInput covers product writes.
type ProductInput struct {
	SKU      string
	Name     string
	IsActive bool
}

// Validate checks product fields.
func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.SKU) == "" {
		return errors.New("masterdata: sku required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("masterdata: name required")
	}
	return nil
}
