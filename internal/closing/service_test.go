package closing

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
	"github.com/ledgerline-erp/ledgerline-erp/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func janPeriod() periods.Period {
	return periods.Period{
		ID:        1,
		Name:      "2025-01",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

type memStore struct {
	periods       map[int64]periods.Period
	activity      []AccountActivity
	entries       map[int64]ledger.Entry
	openings      map[int64]map[int64]OpeningBalance
	seq           map[string]int64
	nextEntryID   int64
	nextOpeningID int64
}

func newMemStore() *memStore {
	return &memStore{
		periods:  map[int64]periods.Period{1: janPeriod()},
		entries:  map[int64]ledger.Entry{},
		openings: map[int64]map[int64]OpeningBalance{},
		seq:      map[string]int64{},
	}
}

func (s *memStore) clone() *memStore {
	next := &memStore{
		periods:       make(map[int64]periods.Period, len(s.periods)),
		activity:      s.activity,
		entries:       make(map[int64]ledger.Entry, len(s.entries)),
		openings:      make(map[int64]map[int64]OpeningBalance, len(s.openings)),
		seq:           make(map[string]int64, len(s.seq)),
		nextEntryID:   s.nextEntryID,
		nextOpeningID: s.nextOpeningID,
	}
	for id, p := range s.periods {
		next.periods[id] = p
	}
	for id, e := range s.entries {
		e.Lines = append([]ledger.Line(nil), e.Lines...)
		next.entries[id] = e
	}
	for pid, rows := range s.openings {
		m := make(map[int64]OpeningBalance, len(rows))
		for aid, ob := range rows {
			m[aid] = ob
		}
		next.openings[pid] = m
	}
	for k, v := range s.seq {
		next.seq[k] = v
	}
	return next
}

// WithTx runs fn against a copy and publishes it only on success, so aborted
// closings leave no partial state behind.
func (s *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	next := s.clone()
	if err := fn(ctx, &memTx{s: next}); err != nil {
		return err
	}
	*s = *next
	return nil
}

func (s *memStore) ListOpeningBalances(_ context.Context, periodID int64) ([]OpeningBalance, error) {
	return (&memTx{s: s}).OpeningBalances(context.Background(), periodID)
}

type memTx struct {
	s *memStore
}

func (t *memTx) PeriodByID(_ context.Context, id int64) (periods.Period, error) {
	p, ok := t.s.periods[id]
	if !ok {
		return periods.Period{}, periods.ErrPeriodNotFound
	}
	return p, nil
}

func (t *memTx) PeriodCovering(_ context.Context, date time.Time) (periods.Period, error) {
	for _, p := range t.s.periods {
		if p.Covers(date) {
			return p, nil
		}
	}
	return periods.Period{}, periods.ErrNoPeriodCovers
}

func (t *memTx) PeriodForUpdate(ctx context.Context, id int64) (periods.Period, error) {
	return t.PeriodByID(ctx, id)
}

func (t *memTx) AccountActivity(_ context.Context, _, _ time.Time) ([]AccountActivity, error) {
	return t.s.activity, nil
}

func (t *memTx) SetPeriodClosed(_ context.Context, id int64, closed bool) error {
	p, ok := t.s.periods[id]
	if !ok {
		return periods.ErrPeriodNotFound
	}
	p.IsClosed = closed
	t.s.periods[id] = p
	return nil
}

func (t *memTx) OpeningBalances(_ context.Context, periodID int64) ([]OpeningBalance, error) {
	rows := make([]OpeningBalance, 0, len(t.s.openings[periodID]))
	for _, ob := range t.s.openings[periodID] {
		rows = append(rows, ob)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountID < rows[j].AccountID })
	return rows, nil
}

func (t *memTx) UpsertOpeningBalance(_ context.Context, in SetOpeningInput) (OpeningBalance, error) {
	rows, ok := t.s.openings[in.PeriodID]
	if !ok {
		rows = map[int64]OpeningBalance{}
		t.s.openings[in.PeriodID] = rows
	}
	ob, ok := rows[in.AccountID]
	if !ok {
		t.s.nextOpeningID++
		ob = OpeningBalance{ID: t.s.nextOpeningID, PeriodID: in.PeriodID, AccountID: in.AccountID}
	}
	ob.Debit = in.Debit
	ob.Credit = in.Credit
	rows[in.AccountID] = ob
	return ob, nil
}

func (t *memTx) ReferenceExists(_ context.Context, reference string) (bool, error) {
	for _, e := range t.s.entries {
		if e.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) NextDocumentNumber(_ context.Context, docType string, periodID int64) (int64, error) {
	key := fmt.Sprintf("%s:%d", docType, periodID)
	t.s.seq[key]++
	return t.s.seq[key], nil
}

func (t *memTx) InsertEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	t.s.nextEntryID++
	e.ID = t.s.nextEntryID
	for i := range e.Lines {
		e.Lines[i].ID = int64(i + 1)
		e.Lines[i].EntryID = e.ID
	}
	t.s.entries[e.ID] = e
	return e, nil
}

func (t *memTx) EntryByID(_ context.Context, id int64) (ledger.Entry, error) {
	e, ok := t.s.entries[id]
	if !ok {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, nil
}

func (t *memTx) SetEntryReversed(_ context.Context, id int64) error {
	e, ok := t.s.entries[id]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	e.IsReversed = true
	t.s.entries[id] = e
	return nil
}

func (t *memTx) EntryHasDocument(_ context.Context, _ int64) (bool, error) {
	return false, nil
}

func (t *memTx) DeleteEntry(_ context.Context, id int64) error {
	delete(t.s.entries, id)
	return nil
}

type cfgStub struct {
	cfg coa.ControlAccounts
}

func (c cfgStub) LoadControlAccounts(context.Context) (coa.ControlAccounts, error) {
	return c.cfg, nil
}

type lockStub struct {
	err      error
	acquired int
	released int
}

func (l *lockStub) Acquire(context.Context, int64) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

func newClosingService(store *memStore, cfg coa.ControlAccounts) *Service {
	return NewService(store, cfgStub{cfg: cfg}, nil, nil)
}

func TestCloseProfitCreditsRetainedEarnings(t *testing.T) {
	store := newMemStore()
	store.activity = []AccountActivity{
		{AccountID: 40, Type: coa.AccountTypeRevenue, DebitSum: decimal.Zero, CreditSum: dec("500.00")},
		{AccountID: 50, Type: coa.AccountTypeExpense, DebitSum: dec("300.00"), CreditSum: decimal.Zero},
	}
	svc := newClosingService(store, coa.ControlAccounts{RetainedEarnings: 90})

	entry, err := svc.Close(context.Background(), 1, 7)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "JE-2025-01-000001", entry.SerialNumber)
	require.Equal(t, "CLOSE-2025-01", entry.Reference)
	require.True(t, entry.Date.Equal(janPeriod().EndDate))

	require.Len(t, entry.Lines, 3)
	require.Equal(t, int64(40), entry.Lines[0].AccountID)
	require.Equal(t, "500.00", entry.Lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(50), entry.Lines[1].AccountID)
	require.Equal(t, "300.00", entry.Lines[1].Credit.StringFixed(2))
	require.Equal(t, int64(90), entry.Lines[2].AccountID)
	require.Equal(t, "200.00", entry.Lines[2].Credit.StringFixed(2))

	require.True(t, store.periods[1].IsClosed)
}

func TestCloseLossDebitsRetainedEarnings(t *testing.T) {
	store := newMemStore()
	store.activity = []AccountActivity{
		{AccountID: 40, Type: coa.AccountTypeRevenue, DebitSum: decimal.Zero, CreditSum: dec("100.00")},
		{AccountID: 50, Type: coa.AccountTypeExpense, DebitSum: dec("250.00"), CreditSum: decimal.Zero},
	}
	svc := newClosingService(store, coa.ControlAccounts{RetainedEarnings: 90})

	entry, err := svc.Close(context.Background(), 1, 7)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, int64(90), entry.Lines[2].AccountID)
	require.Equal(t, "150.00", entry.Lines[2].Debit.StringFixed(2))
}

func TestCloseWithoutActivitySkipsEntry(t *testing.T) {
	store := newMemStore()
	// A revenue account with net debit activity contributes no closing line.
	store.activity = []AccountActivity{
		{AccountID: 40, Type: coa.AccountTypeRevenue, DebitSum: dec("50.00"), CreditSum: dec("30.00")},
	}
	svc := newClosingService(store, coa.ControlAccounts{RetainedEarnings: 90})

	entry, err := svc.Close(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Empty(t, store.entries)
	require.True(t, store.periods[1].IsClosed)
}

func TestCloseTwiceFails(t *testing.T) {
	store := newMemStore()
	store.activity = []AccountActivity{
		{AccountID: 40, Type: coa.AccountTypeRevenue, DebitSum: decimal.Zero, CreditSum: dec("500.00")},
	}
	svc := newClosingService(store, coa.ControlAccounts{RetainedEarnings: 90})

	_, err := svc.Close(context.Background(), 1, 7)
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), 1, 7)
	require.ErrorIs(t, err, ErrAlreadyClosed)
	require.Len(t, store.entries, 1)
}

func TestCloseMissingRetainedEarningsAbortsWholesale(t *testing.T) {
	store := newMemStore()
	store.activity = []AccountActivity{
		{AccountID: 40, Type: coa.AccountTypeRevenue, DebitSum: decimal.Zero, CreditSum: dec("500.00")},
	}
	svc := newClosingService(store, coa.ControlAccounts{})

	_, err := svc.Close(context.Background(), 1, 7)
	require.ErrorIs(t, err, coa.ErrMissingControlAccount)

	var missing *coa.MissingAccountError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, coa.RoleRetainedEarnings, missing.Role)

	require.Empty(t, store.entries)
	require.False(t, store.periods[1].IsClosed)
}

func TestCloseHeldLock(t *testing.T) {
	store := newMemStore()
	locker := &lockStub{err: shared.ErrLockHeld}
	svc := NewService(store, cfgStub{cfg: coa.ControlAccounts{RetainedEarnings: 90}}, nil, locker)

	_, err := svc.Close(context.Background(), 1, 7)
	require.ErrorIs(t, err, shared.ErrLockHeld)
	require.False(t, store.periods[1].IsClosed)
}

func TestCloseReleasesLock(t *testing.T) {
	store := newMemStore()
	locker := &lockStub{}
	svc := NewService(store, cfgStub{cfg: coa.ControlAccounts{RetainedEarnings: 90}}, nil, locker)

	_, err := svc.Close(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, 1, locker.acquired)
	require.Equal(t, 1, locker.released)
}

func TestReopenFlipsFlagOnly(t *testing.T) {
	store := newMemStore()
	store.activity = []AccountActivity{
		{AccountID: 40, Type: coa.AccountTypeRevenue, DebitSum: decimal.Zero, CreditSum: dec("500.00")},
	}
	svc := newClosingService(store, coa.ControlAccounts{RetainedEarnings: 90})

	_, err := svc.Close(context.Background(), 1, 7)
	require.NoError(t, err)

	require.NoError(t, svc.Reopen(context.Background(), 1, 7))
	require.False(t, store.periods[1].IsClosed)
	// The closing entry stays on the books until someone reverses it.
	require.Len(t, store.entries, 1)
}

func TestReopenOpenPeriodFails(t *testing.T) {
	store := newMemStore()
	svc := newClosingService(store, coa.ControlAccounts{})

	err := svc.Reopen(context.Background(), 1, 7)
	require.ErrorIs(t, err, ErrNotClosed)
}

func TestSetOpeningValidation(t *testing.T) {
	store := newMemStore()
	svc := newClosingService(store, coa.ControlAccounts{})

	cases := []struct {
		name string
		in   SetOpeningInput
	}{
		{"both sides", SetOpeningInput{PeriodID: 1, AccountID: 10, Debit: dec("5"), Credit: dec("5")}},
		{"neither side", SetOpeningInput{PeriodID: 1, AccountID: 10}},
		{"negative", SetOpeningInput{PeriodID: 1, AccountID: 10, Debit: dec("-5")}},
		{"sub cent", SetOpeningInput{PeriodID: 1, AccountID: 10, Debit: dec("10.005")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SetOpening(context.Background(), tc.in)
			require.ErrorIs(t, err, ErrInvalidOpening)
		})
	}

	_, err := svc.SetOpening(context.Background(), SetOpeningInput{AccountID: 10, Debit: dec("5")})
	require.Error(t, err)
}

func TestSetOpeningUpsertsRow(t *testing.T) {
	store := newMemStore()
	svc := newClosingService(store, coa.ControlAccounts{})

	row, err := svc.SetOpening(context.Background(), SetOpeningInput{PeriodID: 1, AccountID: 10, Debit: dec("100.00")})
	require.NoError(t, err)
	require.Equal(t, "100.00", row.Debit.StringFixed(2))

	row, err = svc.SetOpening(context.Background(), SetOpeningInput{PeriodID: 1, AccountID: 10, Credit: dec("40.00")})
	require.NoError(t, err)
	require.Equal(t, "40.00", row.Credit.StringFixed(2))

	rows, err := svc.OpeningBalances(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestSetOpeningClosedPeriodFails(t *testing.T) {
	store := newMemStore()
	p := store.periods[1]
	p.IsClosed = true
	store.periods[1] = p
	svc := newClosingService(store, coa.ControlAccounts{})

	_, err := svc.SetOpening(context.Background(), SetOpeningInput{PeriodID: 1, AccountID: 10, Debit: dec("100.00")})
	require.ErrorIs(t, err, periods.ErrPeriodClosed)
}

func TestPostOpeningOnce(t *testing.T) {
	store := newMemStore()
	svc := newClosingService(store, coa.ControlAccounts{})

	_, err := svc.SetOpening(context.Background(), SetOpeningInput{PeriodID: 1, AccountID: 10, Debit: dec("100.00")})
	require.NoError(t, err)
	_, err = svc.SetOpening(context.Background(), SetOpeningInput{PeriodID: 1, AccountID: 30, Credit: dec("100.00")})
	require.NoError(t, err)

	entry, err := svc.PostOpening(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, "OPEN-2025-01", entry.Reference)
	require.True(t, entry.Date.Equal(janPeriod().StartDate))
	require.Len(t, entry.Lines, 2)

	_, err = svc.PostOpening(context.Background(), 1, 7)
	require.ErrorIs(t, err, ErrOpeningPosted)
	require.Len(t, store.entries, 1)
}

func TestPostOpeningUnbalancedFails(t *testing.T) {
	store := newMemStore()
	svc := newClosingService(store, coa.ControlAccounts{})

	_, err := svc.SetOpening(context.Background(), SetOpeningInput{PeriodID: 1, AccountID: 10, Debit: dec("100.00")})
	require.NoError(t, err)
	_, err = svc.SetOpening(context.Background(), SetOpeningInput{PeriodID: 1, AccountID: 30, Credit: dec("40.00")})
	require.NoError(t, err)

	_, err = svc.PostOpening(context.Background(), 1, 7)
	require.ErrorIs(t, err, ledger.ErrUnbalanced)
	require.Empty(t, store.entries)
}

func TestPostOpeningEmptyFails(t *testing.T) {
	store := newMemStore()
	svc := newClosingService(store, coa.ControlAccounts{})

	_, err := svc.PostOpening(context.Background(), 1, 7)
	require.ErrorIs(t, err, ErrOpeningEmpty)
}
