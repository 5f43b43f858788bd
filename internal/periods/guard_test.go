package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	periods []Period
}

func (s memStore) PeriodByID(ctx context.Context, id int64) (Period, error) {
	for _, p := range s.periods {
		if p.ID == id {
			return p, nil
		}
	}
	return Period{}, ErrPeriodNotFound
}

func (s memStore) PeriodCovering(ctx context.Context, date time.Time) (Period, error) {
	var best *Period
	for i, p := range s.periods {
		if p.Covers(date) && (best == nil || p.StartDate.After(best.StartDate)) {
			best = &s.periods[i]
		}
	}
	if best == nil {
		return Period{}, ErrNoPeriodCovers
	}
	return *best, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEnsureOpenResolvesByDate(t *testing.T) {
	store := memStore{periods: []Period{
		{ID: 1, Name: "2025-01", StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
		{ID: 2, Name: "2025-02", StartDate: date(2025, 2, 1), EndDate: date(2025, 2, 28)},
	}}

	p, err := EnsureOpen(context.Background(), store, date(2025, 2, 14), 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), p.ID)
}

func TestEnsureOpenFailsWithoutCoveringPeriod(t *testing.T) {
	store := memStore{periods: []Period{
		{ID: 1, Name: "2025-01", StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
	}}

	_, err := EnsureOpen(context.Background(), store, date(2025, 3, 1), 0)
	require.ErrorIs(t, err, ErrNoPeriodCovers)
}

func TestEnsureOpenRejectsClosedPeriod(t *testing.T) {
	store := memStore{periods: []Period{
		{ID: 1, Name: "2025-01", StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31), IsClosed: true},
	}}

	_, err := EnsureOpen(context.Background(), store, date(2025, 1, 15), 0)
	require.ErrorIs(t, err, ErrPeriodClosed)
}

func TestExplicitPeriodIsAuthoritative(t *testing.T) {
	// The explicit period wins even when the date falls outside its window.
	store := memStore{periods: []Period{
		{ID: 1, Name: "2025-01", StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)},
		{ID: 2, Name: "2025-02", StartDate: date(2025, 2, 1), EndDate: date(2025, 2, 28), IsClosed: true},
	}}

	p, err := EnsureOpen(context.Background(), store, date(2025, 2, 10), 1)
	require.NoError(t, err)
	require.Equal(t, "2025-01", p.Name)

	_, err = EnsureOpen(context.Background(), store, date(2025, 1, 10), 2)
	require.ErrorIs(t, err, ErrPeriodClosed)
}

func TestEnsureOpenOrAbsentAllowsMissingPeriod(t *testing.T) {
	store := memStore{}

	_, found, err := EnsureOpenOrAbsent(context.Background(), store, date(2025, 6, 1), 0)
	require.NoError(t, err)
	require.False(t, found)
}

func TestNestedPeriodsPreferLatestStart(t *testing.T) {
	store := memStore{periods: []Period{
		{ID: 1, Name: "FY-2025", StartDate: date(2025, 1, 1), EndDate: date(2025, 12, 31)},
		{ID: 2, Name: "2025-03", StartDate: date(2025, 3, 1), EndDate: date(2025, 3, 31)},
	}}

	p, err := EnsureOpen(context.Background(), store, date(2025, 3, 10), 0)
	require.NoError(t, err)
	require.Equal(t, "2025-03", p.Name)
}

func TestCreatePeriodInputValidate(t *testing.T) {
	require.Error(t, CreatePeriodInput{Name: "", StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}.Validate())
	require.Error(t, CreatePeriodInput{Name: "2025-01", StartDate: date(2025, 1, 31), EndDate: date(2025, 1, 1)}.Validate())
	require.NoError(t, CreatePeriodInput{Name: "2025-01", StartDate: date(2025, 1, 1), EndDate: date(2025, 1, 31)}.Validate())
}
