package periods

import (
	"errors"
	"strings"
	"time"
)

// Period represents an accounting period window. Entries, invoices, and
// payments may only be written while the covering period is open.
type Period struct {
	ID        int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
	IsClosed  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether the date falls inside the period window (inclusive).
func (p Period) Covers(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate.Truncate(24*time.Hour)) && !d.After(p.EndDate.Truncate(24*time.Hour))
}

// CreatePeriodInput captures validation rules for new periods.
type CreatePeriodInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Validate ensures the create period input is coherent.
func (in CreatePeriodInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("periods: name required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return errors.New("periods: start and end date required")
	}
	if in.EndDate.Before(in.StartDate) {
		return errors.New("periods: end date cannot precede start date")
	}
	return nil
}

var (
	// ErrPeriodClosed indicates a mutation attempted inside a closed period.
	ErrPeriodClosed = errors.New("periods: period is closed")
	// ErrNoPeriodCovers indicates no period exists for the document date.
	ErrNoPeriodCovers = errors.New("periods: no accounting period covers the date")
	// ErrPeriodNotFound indicates an unknown period id.
	ErrPeriodNotFound = errors.New("periods: period not found")
	// ErrPeriodOverlap indicates the requested window conflicts with an existing period.
	ErrPeriodOverlap = errors.New("periods: period overlaps existing range")
)
