package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/microfin/internal/loans/amortization"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity checks every transaction in a window for balance.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReleaseWorksheet computes the amortization worksheet of a release batch.
	TaskReleaseWorksheet = "loans:release_worksheet"
	// TaskReportCacheInvalidate drops every cached report after ledger writes.
	TaskReportCacheInvalidate = "reports:cache_invalidate"
)

// LedgerIntegrityPayload scopes an integrity run. A zero window checks the
// LookbackDays ending yesterday.
type LedgerIntegrityPayload struct {
	From         time.Time `json:"from,omitempty"`
	To           time.Time `json:"to,omitempty"`
	LookbackDays int       `json:"lookbackDays,omitempty"`
}

// ReleaseWorksheetPayload carries a release batch.
type ReleaseWorksheetPayload struct {
	BatchID string                   `json:"batchId"`
	Loans   []amortization.LoanTerms `json:"loans"`
}

// CacheInvalidatePayload records why the report cache was dropped.
type CacheInvalidatePayload struct {
	Reason string `json:"reason"`
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	return newTask(TaskLedgerIntegrity, payload, asynq.MaxRetry(3), asynq.Timeout(10*time.Minute))
}

// NewReleaseWorksheetTask constructs an Asynq task.
func NewReleaseWorksheetTask(payload ReleaseWorksheetPayload) (*asynq.Task, error) {
	return newTask(TaskReleaseWorksheet, payload, asynq.MaxRetry(5), asynq.Timeout(5*time.Minute))
}

// NewCacheInvalidateTask constructs an Asynq task.
func NewCacheInvalidateTask(payload CacheInvalidatePayload) (*asynq.Task, error) {
	return newTask(TaskReportCacheInvalidate, payload, asynq.MaxRetry(10))
}

func newTask(typ string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data, opts...), nil
}
