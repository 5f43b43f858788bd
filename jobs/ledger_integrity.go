package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// LedgerIntegrityJob re-checks invariants the posting path already enforces.
// It exists to catch drift from manual database surgery or migration bugs.
type LedgerIntegrityJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLedgerIntegrityJob constructs the job.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{pool: pool, logger: logger}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	limit := payload.BatchSize
	if limit <= 0 {
		limit = 1000
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return j.checkBalancedEntries(ctx, limit) })
	g.Go(func() error { return j.checkSequenceDrift(ctx) })
	return g.Wait()
}

// checkBalancedEntries flags entries whose line sums diverge.
func (j *LedgerIntegrityJob) checkBalancedEntries(ctx context.Context, limit int) error {
	rows, err := j.pool.Query(ctx, `SELECT e.id, e.serial_number
FROM journal_entries e
JOIN journal_lines l ON l.entry_id = e.id
GROUP BY e.id, e.serial_number
HAVING SUM(l.debit) <> SUM(l.credit)
ORDER BY e.id
LIMIT $1`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var id int64
		var serial string
		if err := rows.Scan(&id, &serial); err != nil {
			return err
		}
		found++
		j.logger.Error("unbalanced journal entry detected",
			slog.Int64("entry_id", id), slog.String("serial_number", serial))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if found == 0 {
		j.logger.Info("ledger balance check clean")
	}
	return nil
}

// checkSequenceDrift compares issued counters against the rows that carry
// them. Deleted drafts legitimately leave gaps, so drift is reported rather
// than treated as a failure.
func (j *LedgerIntegrityJob) checkSequenceDrift(ctx context.Context) error {
	rows, err := j.pool.Query(ctx, `SELECT s.doc_type, s.period_id, s.last_number,
	CASE s.doc_type
		WHEN 'JE' THEN (SELECT COUNT(*) FROM journal_entries e WHERE COALESCE(e.period_id, 0) = s.period_id)
		WHEN 'SI' THEN (SELECT COUNT(*) FROM sales_invoices)
		WHEN 'PI' THEN (SELECT COUNT(*) FROM purchase_invoices)
		ELSE (SELECT COUNT(*) FROM payments p WHERE p.payment_type = CASE s.doc_type WHEN 'RC' THEN 'RECEIPT' ELSE 'DISBURSEMENT' END)
	END AS issued
FROM document_sequences s
ORDER BY s.doc_type, s.period_id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var docType string
		var periodID, lastNumber, issued int64
		if err := rows.Scan(&docType, &periodID, &lastNumber, &issued); err != nil {
			return err
		}
		if issued > lastNumber {
			j.logger.Error("document counter behind issued documents",
				slog.String("doc_type", docType),
				slog.Int64("period_id", periodID),
				slog.Int64("last_number", lastNumber),
				slog.Int64("issued", issued))
		} else if issued < lastNumber {
			j.logger.Info("document numbering gap",
				slog.String("doc_type", docType),
				slog.Int64("period_id", periodID),
				slog.Int64("last_number", lastNumber),
				slog.Int64("issued", issued))
		}
	}
	return rows.Err()
}
