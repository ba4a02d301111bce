package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/microfin/internal/jobs"
	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/reports"
)

const defaultLookbackDays = 1

// LedgerSummarizer builds ledger summaries.
type LedgerSummarizer interface {
	LedgerSummary(ctx context.Context, filter reports.Filter) (reports.LedgerSummary, error)
}

// LedgerIntegrityJob checks that every transaction in a window balances and
// reports the findings. Findings never fail the job.
type LedgerIntegrityJob struct {
	Reports LedgerSummarizer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(svc LedgerSummarizer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Reports: svc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// IntegrityResult summarises one run.
type IntegrityResult struct {
	Transactions int
	Unbalanced   int
	Findings     map[ledger.DiagnosticKind]int
}

// Handle executes the integrity check.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	if errors.Is(err, reports.ErrInvalidFilter) {
		return errors.Join(err, asynq.SkipRetry)
	}
	return err
}

// Run checks the payload window and returns the findings.
func (j *LedgerIntegrityJob) Run(ctx context.Context, payload LedgerIntegrityPayload) (res IntegrityResult, err error) {
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() { err = tracker.End(err) }()

	from, to := j.window(payload)
	logger := j.logger().With(
		slog.String("from", from.Format(time.DateOnly)),
		slog.String("to", to.Format(time.DateOnly)),
	)
	logger.Info("starting ledger integrity check")
	start := time.Now()

	summary, err := j.Reports.LedgerSummary(ctx, reports.Filter{From: from, To: to, Layout: reports.LayoutKindTransaction})
	if err != nil {
		logger.Error("ledger integrity check failed", slog.Any("error", err))
		return IntegrityResult{}, err
	}

	res = IntegrityResult{Transactions: len(summary.Balances), Findings: summary.Diagnostics.CountByKind()}
	for _, b := range summary.Balances {
		if b.Balanced {
			continue
		}
		res.Unbalanced++
		logger.Warn("unbalanced transaction",
			slog.String("transaction_id", b.TransactionID),
			slog.String("debit", b.Debit.String()),
			slog.String("credit", b.Credit.String()),
			slog.String("discrepancy", b.Discrepancy.String()),
		)
	}
	for kind, count := range res.Findings {
		j.metrics().AddFindings(TaskLedgerIntegrity, string(kind), count)
	}

	logger.Info("completed ledger integrity check",
		slog.String("run_id", summary.RunID),
		slog.Int("transactions", res.Transactions),
		slog.Int("unbalanced", res.Unbalanced),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (j *LedgerIntegrityJob) window(p LedgerIntegrityPayload) (time.Time, time.Time) {
	if !p.From.IsZero() && !p.To.IsZero() {
		return p.From, p.To
	}
	days := p.LookbackDays
	if days <= 0 {
		days = defaultLookbackDays
	}
	now := j.now()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return to.AddDate(0, 0, -(days - 1)), to
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
