package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/microfin/internal/jobs"
	"github.com/odyssey-erp/microfin/internal/loans/amortization"
	"github.com/odyssey-erp/microfin/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WorksheetBuilder computes release worksheets.
type WorksheetBuilder interface {
	ReleaseWorksheet(ctx context.Context, loans []amortization.LoanTerms) (reports.ReleaseWorksheet, error)
}

// ReleaseWorksheetJob computes a release batch in the background.
type ReleaseWorksheetJob struct {
	Reports WorksheetBuilder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReleaseWorksheetJob initialises the worksheet handler.
func NewReleaseWorksheetJob(svc WorksheetBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReleaseWorksheetJob {
	return &ReleaseWorksheetJob{Reports: svc, Logger: logger, Metrics: metrics}
}

// Handle executes the worksheet computation. Invalid batches are not retried.
func (j *ReleaseWorksheetJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("release worksheet: handler not configured")
	}
	var payload ReleaseWorksheetPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskReleaseWorksheet)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskReleaseWorksheet), slog.String("batch_id", payload.BatchID))

	ws, err := j.Reports.ReleaseWorksheet(ctx, payload.Loans)
	if err != nil {
		if errors.Is(err, reports.ErrInvalidFilter) {
			logger.Warn("release batch rejected", slog.Any("error", err))
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}
	metrics.AddFindings(TaskReleaseWorksheet, "failed_loan", ws.Failed)
	logger.Info("release worksheet computed",
		slog.String("run_id", ws.RunID),
		slog.Int("loans", len(ws.Results)),
		slog.Int("failed", ws.Failed),
		slog.String("total_net", ws.TotalNet.StringFixed(2)),
	)
	return nil
}
