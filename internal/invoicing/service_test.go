package invoicing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-erp/ledgerline-erp/internal/coa"
	"github.com/ledgerline-erp/ledgerline-erp/internal/costing"
	"github.com/ledgerline-erp/ledgerline-erp/internal/ledger"
	"github.com/ledgerline-erp/ledgerline-erp/internal/periods"
)

type invoiceKey struct {
	kind Kind
	id   int64
}

// memStore mirrors the transactional contract: every WithTx runs against a
// deep copy that is published only on success, so a failed posting leaves no
// partial invoice, entry, or layer state behind.
type memStore struct {
	periods   []periods.Period
	invoices  map[invoiceKey]Invoice
	entries   map[int64]ledger.Entry
	layers    []costing.Layer
	movements []costing.Movement
	seq       map[string]int64
	nextID    int64
	clock     time.Time
}

func newMemStore(ps ...periods.Period) *memStore {
	return &memStore{
		periods:  ps,
		invoices: make(map[invoiceKey]Invoice),
		entries:  make(map[int64]ledger.Entry),
		seq:      make(map[string]int64),
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) clone() *memStore {
	c := &memStore{
		periods:   append([]periods.Period(nil), s.periods...),
		invoices:  make(map[invoiceKey]Invoice, len(s.invoices)),
		entries:   make(map[int64]ledger.Entry, len(s.entries)),
		layers:    append([]costing.Layer(nil), s.layers...),
		movements: append([]costing.Movement(nil), s.movements...),
		seq:       make(map[string]int64, len(s.seq)),
		nextID:    s.nextID,
		clock:     s.clock,
	}
	for k, v := range s.invoices {
		v.Items = append([]Item(nil), v.Items...)
		c.invoices[k] = v
	}
	for k, v := range s.entries {
		v.Lines = append([]ledger.Line(nil), v.Lines...)
		c.entries[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func (s *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := s.clone()
	if err := fn(ctx, snapshot); err != nil {
		return err
	}
	*s = *snapshot
	return nil
}

func (s *memStore) GetInvoice(_ context.Context, kind Kind, id int64) (Invoice, error) {
	inv, ok := s.invoices[invoiceKey{kind, id}]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *memStore) ListInvoices(_ context.Context, kind Kind, unpostedOnly bool) ([]Invoice, error) {
	var out []Invoice
	for k, inv := range s.invoices {
		if k.kind != kind {
			continue
		}
		if unpostedOnly && inv.JournalEntryID != nil {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *memStore) InvoiceForUpdate(ctx context.Context, kind Kind, id int64) (Invoice, error) {
	return s.GetInvoice(ctx, kind, id)
}

func (s *memStore) InsertInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	s.nextID++
	inv.ID = s.nextID
	inv.Total = decimal.Zero
	s.invoices[invoiceKey{inv.Kind, inv.ID}] = inv
	return inv, nil
}

func (s *memStore) ReplaceItems(_ context.Context, kind Kind, invoiceID int64, items []ItemInput) ([]Item, error) {
	inv, ok := s.invoices[invoiceKey{kind, invoiceID}]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	inv.Items = nil
	for _, in := range items {
		s.nextID++
		inv.Items = append(inv.Items, Item{
			ID: s.nextID, InvoiceID: invoiceID,
			ProductID: in.ProductID, Qty: in.Qty, UnitPrice: in.UnitPrice,
		})
	}
	s.invoices[invoiceKey{kind, invoiceID}] = inv
	return inv.Items, nil
}

func (s *memStore) UpdateInvoiceHeader(_ context.Context, kind Kind, id int64, partyID int64, date time.Time, total decimal.Decimal) error {
	inv, ok := s.invoices[invoiceKey{kind, id}]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.PartyID = partyID
	inv.Date = date
	inv.Total = total
	s.invoices[invoiceKey{kind, id}] = inv
	return nil
}

func (s *memStore) SetInvoiceTotal(_ context.Context, kind Kind, id int64, total decimal.Decimal) error {
	inv, ok := s.invoices[invoiceKey{kind, id}]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Total = total
	s.invoices[invoiceKey{kind, id}] = inv
	return nil
}

func (s *memStore) LinkInvoice(_ context.Context, kind Kind, id int64, entryID int64) (bool, error) {
	inv, ok := s.invoices[invoiceKey{kind, id}]
	if !ok {
		return false, ErrInvoiceNotFound
	}
	if inv.JournalEntryID != nil {
		return false, nil
	}
	inv.JournalEntryID = &entryID
	s.invoices[invoiceKey{kind, id}] = inv
	return true, nil
}

func (s *memStore) DeleteInvoice(_ context.Context, kind Kind, id int64) error {
	delete(s.invoices, invoiceKey{kind, id})
	return nil
}

func (s *memStore) PeriodByID(_ context.Context, id int64) (periods.Period, error) {
	for _, p := range s.periods {
		if p.ID == id {
			return p, nil
		}
	}
	return periods.Period{}, periods.ErrPeriodNotFound
}

func (s *memStore) PeriodCovering(_ context.Context, date time.Time) (periods.Period, error) {
	for _, p := range s.periods {
		if p.Covers(date) {
			return p, nil
		}
	}
	return periods.Period{}, periods.ErrNoPeriodCovers
}

func (s *memStore) NextDocumentNumber(_ context.Context, docType string, periodID int64) (int64, error) {
	key := fmt.Sprintf("%s/%d", docType, periodID)
	s.seq[key]++
	return s.seq[key], nil
}

func (s *memStore) InsertEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.nextID++
	e.ID = s.nextID
	for i := range e.Lines {
		e.Lines[i].EntryID = e.ID
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *memStore) EntryByID(_ context.Context, id int64) (ledger.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return ledger.Entry{}, ledger.ErrEntryNotFound
	}
	return e, nil
}

func (s *memStore) SetEntryReversed(_ context.Context, id int64) error {
	e, ok := s.entries[id]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	e.IsReversed = true
	s.entries[id] = e
	return nil
}

func (s *memStore) EntryHasDocument(_ context.Context, id int64) (bool, error) {
	for _, inv := range s.invoices {
		if inv.JournalEntryID != nil && *inv.JournalEntryID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) DeleteEntry(_ context.Context, id int64) error {
	delete(s.entries, id)
	return nil
}

func (s *memStore) LayersForUpdate(_ context.Context, productID int64) ([]costing.Layer, error) {
	var out []costing.Layer
	for _, l := range s.layers {
		if l.ProductID == productID && l.Remaining.IsPositive() {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memStore) InsertLayer(_ context.Context, l costing.Layer) (costing.Layer, error) {
	s.nextID++
	l.ID = s.nextID
	l.CreatedAt = s.clock
	s.clock = s.clock.Add(time.Minute)
	s.layers = append(s.layers, l)
	return l, nil
}

func (s *memStore) SetLayerRemaining(_ context.Context, layerID int64, remaining decimal.Decimal) error {
	for i := range s.layers {
		if s.layers[i].ID == layerID {
			s.layers[i].Remaining = remaining
			return nil
		}
	}
	return costing.ErrInsufficientStock
}

func (s *memStore) InsertMovement(_ context.Context, m costing.Movement) (costing.Movement, error) {
	s.nextID++
	m.ID = s.nextID
	s.movements = append(s.movements, m)
	return m, nil
}

type staticConfig struct {
	cfg coa.ControlAccounts
}

func (c staticConfig) LoadControlAccounts(context.Context) (coa.ControlAccounts, error) {
	return c.cfg, nil
}

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

func janDate() time.Time {
	return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
}

func seedStock(t *testing.T, store *memStore, productID int64, qty, cost string) {
	t.Helper()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := costing.Receive(ctx, tx, productID, dec(qty), dec(cost), "seed")
		return err
	})
	require.NoError(t, err)
}

func newSalesService(store *memStore, cfg coa.ControlAccounts) *Service {
	return NewService(store, staticConfig{cfg: cfg}, nil)
}

func TestCreateAssignsInvoiceNumber(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("2"), UnitPrice: dec("5.00")}},
	})
	require.NoError(t, err)
	require.Equal(t, "SI-000001", inv.Number)
	require.Equal(t, "10.00", inv.Total.StringFixed(2))

	purchase, err := svc.Create(context.Background(), CreateInput{
		Kind: KindPurchase, PartyID: 2, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("1"), UnitPrice: dec("3.00")}},
	})
	require.NoError(t, err)
	require.Equal(t, "PI-000001", purchase.Number)
}

func TestCreateRejectsDateOutsideOpenPeriod(t *testing.T) {
	svc := newSalesService(newMemStore(), coa.ControlAccounts{})

	_, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("1"), UnitPrice: dec("1.00")}},
	})
	require.ErrorIs(t, err, periods.ErrNoPeriodCovers)
}

func TestPostSalesBuildsBalancedEntry(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{AccountsReceivable: 10, SalesRevenue: 40})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("2"), UnitPrice: dec("5.00")}},
	})
	require.NoError(t, err)

	entry, err := svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.NoError(t, err)
	require.Equal(t, "JE-2025-01-000001", entry.SerialNumber)
	require.Equal(t, inv.Number, entry.Reference)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, int64(10), entry.Lines[0].AccountID)
	require.Equal(t, "10.00", entry.Lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(40), entry.Lines[1].AccountID)
	require.Equal(t, "10.00", entry.Lines[1].Credit.StringFixed(2))

	posted, err := svc.Get(context.Background(), KindSales, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, posted.JournalEntryID)
	require.Equal(t, entry.ID, *posted.JournalEntryID)
}

func TestPostSalesConsumesFIFOForCOGS(t *testing.T) {
	store := newMemStore(janPeriod())
	seedStock(t, store, 1, "100", "0.20")
	svc := newSalesService(store, coa.ControlAccounts{
		AccountsReceivable: 10, SalesRevenue: 40, COGS: 50, Inventory: 12,
	})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("60"), UnitPrice: dec("1.00")}},
	})
	require.NoError(t, err)

	entry, err := svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 4)
	require.Equal(t, "12.00", entry.Lines[2].Debit.StringFixed(2), "COGS at FIFO cost")
	require.Equal(t, "12.00", entry.Lines[3].Credit.StringFixed(2), "inventory credit")
	require.True(t, store.layers[0].Remaining.Equal(dec("40")))
}

func TestPostPurchaseReceivesLayers(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{Inventory: 12, AccountsPayable: 20})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindPurchase, PartyID: 2, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("100"), UnitPrice: dec("0.20")}},
	})
	require.NoError(t, err)

	entry, err := svc.Post(context.Background(), KindPurchase, inv.ID, 7)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, int64(12), entry.Lines[0].AccountID)
	require.Equal(t, "20.00", entry.Lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(20), entry.Lines[1].AccountID)

	require.Len(t, store.layers, 1)
	require.True(t, store.layers[0].Remaining.Equal(dec("100")))
	require.True(t, store.layers[0].UnitCost.Equal(dec("0.20")))
}

func TestPostPurchaseFallsBackToPurchasesAccount(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{Purchases: 55, AccountsPayable: 20})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindPurchase, PartyID: 2, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("1"), UnitPrice: dec("9.99")}},
	})
	require.NoError(t, err)

	entry, err := svc.Post(context.Background(), KindPurchase, inv.ID, 7)
	require.NoError(t, err)
	require.Equal(t, int64(55), entry.Lines[0].AccountID)
}

func TestPostIsIdempotent(t *testing.T) {
	store := newMemStore(janPeriod())
	seedStock(t, store, 1, "100", "0.20")
	svc := newSalesService(store, coa.ControlAccounts{
		AccountsReceivable: 10, SalesRevenue: 40, COGS: 50, Inventory: 12,
	})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("10"), UnitPrice: dec("1.00")}},
	})
	require.NoError(t, err)

	first, err := svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.NoError(t, err)
	second, err := svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Len(t, store.entries, 1)
	// One seed IN plus exactly one OUT; the second post must not consume again.
	require.Len(t, store.movements, 2)
	require.True(t, store.layers[0].Remaining.Equal(dec("90")))
}

func TestPostRejectsNoItemsAndZeroTotal(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{AccountsReceivable: 10, SalesRevenue: 40})

	empty, err := svc.Create(context.Background(), CreateInput{Kind: KindSales, PartyID: 1, Date: janDate()})
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), KindSales, empty.ID, 7)
	require.ErrorIs(t, err, ErrNoItems)

	free, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("1"), UnitPrice: dec("0")}},
	})
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), KindSales, free.ID, 7)
	require.ErrorIs(t, err, ErrZeroTotal)
	require.Empty(t, store.entries)
}

func TestPostFailsLoudlyOnMissingControlAccount(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{AccountsReceivable: 10})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("1"), UnitPrice: dec("1.00")}},
	})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.ErrorIs(t, err, coa.ErrMissingControlAccount)
	var missing *coa.MissingAccountError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, coa.RoleSalesRevenue, missing.Role)
	require.Empty(t, store.entries)
}

func TestPostRejectsClosedPeriod(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{AccountsReceivable: 10, SalesRevenue: 40})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("1"), UnitPrice: dec("1.00")}},
	})
	require.NoError(t, err)

	store.periods[0].IsClosed = true
	_, err = svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.ErrorIs(t, err, periods.ErrPeriodClosed)
	require.Empty(t, store.entries)
}

func TestInsufficientStockAbortsWholePosting(t *testing.T) {
	store := newMemStore(janPeriod())
	seedStock(t, store, 1, "5", "1.00")
	svc := newSalesService(store, coa.ControlAccounts{
		AccountsReceivable: 10, SalesRevenue: 40, COGS: 50, Inventory: 12,
	})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("10"), UnitPrice: dec("1.00")}},
	})
	require.NoError(t, err)

	_, err = svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.ErrorIs(t, err, costing.ErrInsufficientStock)

	require.Empty(t, store.entries)
	require.True(t, store.layers[0].Remaining.Equal(dec("5")), "no partial layer mutation may persist")
	unposted, err := svc.List(context.Background(), KindSales, true)
	require.NoError(t, err)
	require.Len(t, unposted, 1)
}

func TestPostedInvoiceIsImmutable(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{AccountsReceivable: 10, SalesRevenue: 40})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("1"), UnitPrice: dec("1.00")}},
	})
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), UpdateInput{
		ID: inv.ID, Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("2"), UnitPrice: dec("1.00")}},
	})
	require.ErrorIs(t, err, ErrInvoicePosted)
	require.ErrorIs(t, svc.Delete(context.Background(), KindSales, inv.ID), ErrInvoicePosted)
}

func TestReverseNetsTrialBalanceToZero(t *testing.T) {
	store := newMemStore(janPeriod())
	svc := newSalesService(store, coa.ControlAccounts{AccountsReceivable: 10, SalesRevenue: 40})

	inv, err := svc.Create(context.Background(), CreateInput{
		Kind: KindSales, PartyID: 1, Date: janDate(),
		Items: []ItemInput{{ProductID: 1, Qty: dec("10"), UnitPrice: dec("1.00")}},
	})
	require.NoError(t, err)
	entry, err := svc.Post(context.Background(), KindSales, inv.ID, 7)
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), KindSales, inv.ID, 7)
	require.NoError(t, err)
	require.Equal(t, "REV-"+entry.SerialNumber, reversal.Reference)

	// Per-account net across both entries is zero.
	net := map[int64]decimal.Decimal{}
	for _, e := range store.entries {
		for _, l := range e.Lines {
			net[l.AccountID] = net[l.AccountID].Add(l.Debit).Sub(l.Credit)
		}
	}
	for accountID, balance := range net {
		require.True(t, balance.IsZero(), "account %d should net to zero", accountID)
	}

	// The document link survives reversal.
	posted, err := svc.Get(context.Background(), KindSales, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, posted.JournalEntryID)
}
