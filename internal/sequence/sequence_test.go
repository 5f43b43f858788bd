package sequence

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memCounter mirrors the counter contract (lock, read-increment-write, one
// number per call) for concurrency tests that cannot reach PostgreSQL.
type memCounter struct {
	mu   sync.Mutex
	last map[[2]int64]int64
	keys map[string]int64
	next int64
}

func newMemCounter() *memCounter {
	return &memCounter{last: make(map[[2]int64]int64), keys: make(map[string]int64)}
}

func (c *memCounter) NextNumber(_ context.Context, docType string, periodID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.keys[docType]
	if !ok {
		c.next++
		id = c.next
		c.keys[docType] = id
	}
	key := [2]int64{id, periodID}
	c.last[key]++
	return c.last[key], nil
}

func TestConcurrentNextIsGapless(t *testing.T) {
	counter := newMemCounter()
	const n = 50

	results := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			num, err := counter.NextNumber(context.Background(), DocTypeJournal, 0)
			if err != nil {
				return err
			}
			results[i] = num
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, got := range results {
		require.Equal(t, int64(i+1), got, "expected consecutive numbers with no gaps or duplicates")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	counter := newMemCounter()
	ctx := context.Background()

	n1, err := counter.NextNumber(ctx, DocTypeJournal, 1)
	require.NoError(t, err)
	n2, err := counter.NextNumber(ctx, DocTypeJournal, 2)
	require.NoError(t, err)
	n3, err := counter.NextNumber(ctx, DocTypeReceipt, 1)
	require.NoError(t, err)

	require.Equal(t, int64(1), n1)
	require.Equal(t, int64(1), n2)
	require.Equal(t, int64(1), n3)
}

func TestDocumentNumberFormat(t *testing.T) {
	require.Equal(t, "JE-2025-01-000007", DocumentNumber(DocTypeJournal, "2025-01", 7))
	require.Equal(t, "RC-2025-01-000003", DocumentNumber(DocTypeReceipt, "2025-01", 3))
	require.Equal(t, "JE-NO-PERIOD-000001", DocumentNumber(DocTypeJournal, "", 1))
	require.Equal(t, "SI-000042", InvoiceNumber(DocTypeSalesInvoice, 42))
	require.Equal(t, "PI-001000", InvoiceNumber(DocTypePurchaseInvoice, 1000))
}
