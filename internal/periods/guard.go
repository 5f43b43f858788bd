package periods

import (
	"context"
	"errors"
	"time"
)

// Store resolves periods inside a caller's transaction. Every transactional
// repository that posts dated documents implements it.
type Store interface {
	PeriodByID(ctx context.Context, id int64) (Period, error)
	// PeriodCovering returns the period containing the date, preferring the
	// latest start date when ranges are nested. ErrNoPeriodCovers when none.
	PeriodCovering(ctx context.Context, date time.Time) (Period, error)
}

// Resolve returns the period governing a document. An explicitly supplied
// period is authoritative even when it contradicts the date; this mirrors the
// historical behaviour and is deliberately not "fixed". The bool reports
// whether any period was found.
func Resolve(ctx context.Context, store Store, date time.Time, explicitID int64) (Period, bool, error) {
	if explicitID != 0 {
		p, err := store.PeriodByID(ctx, explicitID)
		if err != nil {
			return Period{}, false, err
		}
		return p, true, nil
	}
	p, err := store.PeriodCovering(ctx, date)
	if err != nil {
		if errors.Is(err, ErrNoPeriodCovers) {
			return Period{}, false, nil
		}
		return Period{}, false, err
	}
	return p, true, nil
}

// EnsureOpen resolves the governing period and requires it to exist and be
// open. Invoices, payments, and opening balances cannot post without one.
func EnsureOpen(ctx context.Context, store Store, date time.Time, explicitID int64) (Period, error) {
	p, found, err := Resolve(ctx, store, date, explicitID)
	if err != nil {
		return Period{}, err
	}
	if !found {
		return Period{}, ErrNoPeriodCovers
	}
	if p.IsClosed {
		return Period{}, ErrPeriodClosed
	}
	return p, nil
}

// EnsureOpenOrAbsent allows documents without a covering period (manual
// journal entries carry a NO-PERIOD serial segment) but still rejects dates
// that fall inside a closed one. The bool reports whether a period governs.
func EnsureOpenOrAbsent(ctx context.Context, store Store, date time.Time, explicitID int64) (Period, bool, error) {
	p, found, err := Resolve(ctx, store, date, explicitID)
	if err != nil {
		return Period{}, false, err
	}
	if found && p.IsClosed {
		return Period{}, true, ErrPeriodClosed
	}
	return p, found, nil
}
