// Package jobs hosts background workers for the accounting engine.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity re-verifies ledger invariants in the background.
	TaskLedgerIntegrity = "ledger:integrity"
)

// LedgerIntegrityPayload bounds how many entries one run inspects.
type LedgerIntegrityPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask(batchSize int) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
