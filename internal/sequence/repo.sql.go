package sequence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline-erp/ledgerline-erp/internal/platform/db"
)

// Next increments and returns the counter for (docType, periodID) inside the
// caller's transaction. periodID 0 means "no period". The upsert takes a
// row-level exclusive lock for the remainder of the transaction, so two
// concurrent posters serialise on the counter and an aborted transaction
// issues nothing: the gapless property follows from the counter row and the
// numbered document committing atomically.
func Next(ctx context.Context, q db.Querier, docType string, periodID int64) (int64, error) {
	var n int64
	err := q.QueryRow(ctx, `INSERT INTO document_sequences (doc_type, period_id, last_number)
VALUES ($1, $2, 1)
ON CONFLICT (doc_type, period_id)
DO UPDATE SET last_number = document_sequences.last_number + 1
RETURNING last_number`, docType, periodID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Sequencer issues numbers in a dedicated transaction for callers that are
// not already inside one. Posting paths use Next with their own transaction
// instead, so a failed posting never burns a number.
type Sequencer struct {
	pool *pgxpool.Pool
}

// NewSequencer constructs Sequencer.
func NewSequencer(pool *pgxpool.Pool) *Sequencer {
	return &Sequencer{pool: pool}
}

// NextNumber issues the next number for the key, committing immediately.
func (s *Sequencer) NextNumber(ctx context.Context, docType string, periodID int64) (int64, error) {
	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		n, err = Next(ctx, tx, docType, periodID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
