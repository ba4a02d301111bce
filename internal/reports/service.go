package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/classify"
	"github.com/odyssey-erp/microfin/internal/ledger/grouping"
	"github.com/odyssey-erp/microfin/internal/ledger/polarity"
	"github.com/odyssey-erp/microfin/internal/ledger/totals"
	"github.com/odyssey-erp/microfin/internal/loans/aging"
	"github.com/odyssey-erp/microfin/internal/loans/amortization"
)

// Store supplies already-populated ledger and loan records.
type Store interface {
	ListEntries(ctx context.Context, filter Filter) ([]ledger.RawEntry, error)
	ListLoans(ctx context.Context, filter AgingFilter) ([]Loan, error)
	ListLoanEntries(ctx context.Context, filter AgingFilter) ([]ledger.RawEntry, error)
}

// Recorder receives report instrumentation.
type Recorder interface {
	AddDiagnostics(kind string, count int)
	CacheLookup(report string, hit bool)
}

// Config wires the service dependencies.
type Config struct {
	Store       Store
	Classifier  *classify.Classifier
	Calculator  *amortization.Calculator
	Savings     amortization.SavingsTable
	Cache       *Cache
	Recorder    Recorder
	Logger      *slog.Logger
	Concurrency int
}

// Service assembles report data. It is safe for concurrent use.
type Service struct {
	store       Store
	classifier  *classify.Classifier
	fingerprint string
	calc        *amortization.Calculator
	savings     amortization.SavingsTable
	cache       *Cache
	recorder    Recorder
	logger      *slog.Logger
	concurrency int
	builds      singleflight.Group
	newID       func() string
}

// NewService validates cfg and builds a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("reports: store required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("reports: classifier required")
	}
	if cfg.Calculator == nil {
		cfg.Calculator = amortization.NewCalculator(amortization.Policy{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Service{
		store:       cfg.Store,
		classifier:  cfg.Classifier,
		fingerprint: cfg.Classifier.Table().Fingerprint(),
		calc:        cfg.Calculator,
		savings:     cfg.Savings,
		cache:       cfg.Cache,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		newID:       uuid.NewString,
	}, nil
}

// Classifier exposes the active classification table.
func (s *Service) Classifier() *classify.Classifier { return s.classifier }

// LedgerSummary groups and subtotals the entries matching filter and checks
// every transaction for balance.
func (s *Service) LedgerSummary(ctx context.Context, filter Filter) (LedgerSummary, error) {
	if err := filter.Validate(); err != nil {
		return LedgerSummary{}, err
	}
	var out LedgerSummary
	err := s.cached(ctx, "ledger_summary", filter.token(), &out, func(ctx context.Context) (any, error) {
		return s.buildLedgerSummary(ctx, filter)
	})
	return out, err
}

func (s *Service) buildLedgerSummary(ctx context.Context, filter Filter) (LedgerSummary, error) {
	entries, diags, err := s.loadEntries(ctx, filter)
	if err != nil {
		return LedgerSummary{}, err
	}
	balances, balanceDiags := totals.CheckTransactions(entries)
	scoped := forClient(entries, filter.ClientID)
	bucketTotals, classDiags := s.classifier.SumByBucket(scoped)
	diags.Merge(classDiags)
	diags.Merge(balanceDiags)

	layout := layouts[filter.Layout]
	tree := totals.Reconcile(grouping.GroupBy(scoped, layout.keys...))

	summary := LedgerSummary{
		RunID:        s.newID(),
		Filter:       filter,
		TableVersion: s.classifier.Table().Version,
		Rows:         flattenRows(tree.Rows(filter.Details, layout.label)),
		GrandTotal:   tree.GrandTotal,
		BucketTotals: bucketTotals,
		Balances:     balances,
		Diagnostics:  diags,
	}
	s.report(ctx, "ledger_summary", summary.RunID, diags)
	return summary, nil
}

// ReceivablesAging ages principal payments per loan against its maturity date
// and ages the unpaid principal as of filter.AsOf.
func (s *Service) ReceivablesAging(ctx context.Context, filter AgingFilter) (AgingReport, error) {
	if err := filter.Validate(); err != nil {
		return AgingReport{}, err
	}
	var out AgingReport
	err := s.cached(ctx, "receivables_aging", filter.token(), &out, func(ctx context.Context) (any, error) {
		return s.buildAging(ctx, filter)
	})
	return out, err
}

func (s *Service) buildAging(ctx context.Context, filter AgingFilter) (AgingReport, error) {
	loans, err := s.store.ListLoans(ctx, filter)
	if err != nil {
		return AgingReport{}, fmt.Errorf("reports: list loans: %w", err)
	}
	raws, err := s.store.ListLoanEntries(ctx, filter)
	if err != nil {
		return AgingReport{}, fmt.Errorf("reports: list loan entries: %w", err)
	}
	entries, diags, err := ledger.NormalizeAll(raws)
	if err != nil {
		return AgingReport{}, err
	}
	var collections []ledger.Entry
	for _, e := range s.classifier.Filter(entries, classify.BucketPrincipal) {
		if !disbursement(e.Parent.Kind) {
			collections = append(collections, e)
		}
	}
	payments, matchDiags := matchPayments(loans, collections, filter.AsOf)
	diags.Merge(matchDiags)

	input := make([]aging.Loan, len(loans))
	for i, l := range loans {
		input[i] = aging.Loan{
			ClientID:   l.ClientID,
			ClientName: l.ClientName,
			LoanID:     l.LoanID,
			Maturity:   l.Maturity,
			Payments:   payments[i],
		}
	}
	aged, agingDiags := aging.AgeLoans(input)
	diags.Merge(agingDiags)

	report := AgingReport{
		RunID:       s.newID(),
		Filter:      filter,
		Loans:       aged,
		Total:       aging.Total(aged),
		Diagnostics: diags,
	}
	for i, l := range loans {
		paid := decimal.Zero
		for _, p := range payments[i] {
			paid = paid.Add(p.Amount)
		}
		balance := l.Principal.Sub(paid)
		if !balance.IsPositive() {
			continue
		}
		// Missing maturity is already reported by AgeLoans.
		res, _ := aging.AgeOutstanding(balance, l.Maturity, filter.AsOf)
		report.Outstanding = append(report.Outstanding, OutstandingAging{
			ClientID: l.ClientID,
			LoanID:   l.LoanID,
			Balance:  balance,
			Result:   res,
		})
	}
	s.report(ctx, "receivables_aging", report.RunID, diags)
	return report, nil
}

// matchPayments assigns each principal entry posted on or before asOf to the
// loan with the same client and cycle. When the cycle is absent or matches no
// loan, the client's only loan takes the entry. Anything else is reported as
// unmatched and left out of aging.
func matchPayments(loans []Loan, entries []ledger.Entry, asOf time.Time) ([][]aging.Payment, ledger.Diagnostics) {
	matched := make([][]ledger.Entry, len(loans))
	byCycle := make(map[string]int, len(loans))
	byClient := make(map[string][]int)
	for i, l := range loans {
		if l.Cycle != nil {
			byCycle[cycleKey(l.ClientID, *l.Cycle)] = i
		}
		byClient[l.ClientID] = append(byClient[l.ClientID], i)
	}
	var diags ledger.Diagnostics
	for _, e := range entries {
		if aging.DaysBetween(asOf, e.Parent.Date) > 0 {
			continue
		}
		idx, ok := -1, false
		if e.Cycle != nil {
			idx, ok = byCycle[cycleKey(e.ClientID(), *e.Cycle)]
		}
		if !ok {
			if candidates := byClient[e.ClientID()]; len(candidates) == 1 {
				idx, ok = candidates[0], true
			}
		}
		if !ok {
			diags.Add(ledger.UnmatchedPayment(e.ClientID(), e.Parent.ID, e.Credit.Sub(e.Debit)))
			continue
		}
		matched[idx] = append(matched[idx], e)
	}
	out := make([][]aging.Payment, len(loans))
	for i := range matched {
		out[i] = aging.PaymentsFromEntries(matched[i], nil)
	}
	return out, diags
}

// forClient keeps the lines of clientID, or every line when clientID is empty.
func forClient(entries []ledger.Entry, clientID string) []ledger.Entry {
	if clientID == "" {
		return entries
	}
	out := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		if e.ClientID() == clientID {
			out = append(out, e)
		}
	}
	return out
}

// disbursement reports whether kind releases principal rather than collecting it.
func disbursement(kind ledger.TransactionKind) bool {
	switch kind {
	case ledger.KindLoanRelease, ledger.KindRelease, ledger.KindEmergencyLoan:
		return true
	}
	return false
}

func cycleKey(clientID string, cycle int) string {
	return clientID + "#" + strconv.Itoa(cycle)
}

// ReleaseWorksheet computes amortization for a release batch. Loans that fail
// carry their error; the batch itself only fails on cancellation.
func (s *Service) ReleaseWorksheet(ctx context.Context, loans []amortization.LoanTerms) (ReleaseWorksheet, error) {
	if len(loans) == 0 {
		return ReleaseWorksheet{}, fmt.Errorf("%w: at least one loan required", ErrInvalidFilter)
	}
	for i := range loans {
		if err := validate.Struct(loans[i]); err != nil {
			return ReleaseWorksheet{}, fmt.Errorf("%w: loan %d: %v", ErrInvalidFilter, i, err)
		}
	}
	results, err := s.calc.Batch(ctx, loans, s.savings, s.concurrency)
	if err != nil {
		return ReleaseWorksheet{}, err
	}
	ws := ReleaseWorksheet{RunID: s.newID(), Results: results}
	for _, r := range results {
		if r.Result == nil {
			ws.Failed++
			s.logger.WarnContext(ctx, "loan amortization failed",
				slog.String("run_id", ws.RunID),
				slog.String("loan_id", r.LoanID),
				slog.String("error", r.Error))
			continue
		}
		ws.TotalPrincipal = ws.TotalPrincipal.Add(r.Result.Principal)
		ws.TotalDeductions = ws.TotalDeductions.Add(r.Result.TotalDeductions)
		ws.TotalNet = ws.TotalNet.Add(r.Result.NetLoanProceeds)
	}
	return ws, nil
}

// ClientBalances accumulates, per client, the polarity-signed amounts of the
// entries classified under bucket.
func (s *Service) ClientBalances(ctx context.Context, filter Filter, bucket classify.Bucket) (ClientBalances, error) {
	if err := filter.Validate(); err != nil {
		return ClientBalances{}, err
	}
	if !s.knownBucket(bucket) {
		return ClientBalances{}, fmt.Errorf("%w: unknown bucket %q", ErrInvalidFilter, bucket)
	}
	var out ClientBalances
	err := s.cached(ctx, "client_balances", filter.token()+"|"+string(bucket), &out, func(ctx context.Context) (any, error) {
		entries, diags, err := s.loadEntries(ctx, filter)
		if err != nil {
			return nil, err
		}
		include := func(code string) bool { return s.classifier.Is(code, bucket) }
		balances, polDiags := polarity.Accumulate(forClient(entries, filter.ClientID), include, s.classifier)
		diags.Merge(polDiags)
		res := ClientBalances{
			RunID:       s.newID(),
			Filter:      filter,
			Bucket:      bucket,
			Balances:    balances,
			Diagnostics: diags,
		}
		for _, b := range balances {
			res.Total = res.Total.Add(b.Balance)
		}
		s.report(ctx, "client_balances", res.RunID, diags)
		return res, nil
	})
	return out, err
}

func (s *Service) knownBucket(bucket classify.Bucket) bool {
	if bucket == classify.BucketMisc {
		return true
	}
	for _, b := range s.classifier.Buckets() {
		if b == bucket {
			return true
		}
	}
	return false
}

func (s *Service) loadEntries(ctx context.Context, filter Filter) ([]ledger.Entry, ledger.Diagnostics, error) {
	raws, err := s.store.ListEntries(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("reports: list entries: %w", err)
	}
	return ledger.NormalizeAll(raws)
}

// cached serves a report from the cache, building it at most once per key
// across concurrent callers.
func (s *Service) cached(ctx context.Context, report, filter string, dest any, build func(context.Context) (any, error)) error {
	key, err := s.cache.BuildKey(ctx, report, s.fingerprint, filter)
	if err != nil {
		s.logger.WarnContext(ctx, "report cache unavailable", slog.String("report", report), slog.Any("error", err))
		key = report + ":" + s.fingerprint + ":" + filter
	}
	ch := s.builds.DoChan(key, func() (any, error) {
		var value json.RawMessage
		hit, err := s.cache.FetchJSON(ctx, key, &value, build)
		if err != nil {
			return nil, err
		}
		if s.recorder != nil {
			s.recorder.CacheLookup(report, hit)
		}
		return value, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.(json.RawMessage), dest)
	}
}

func (s *Service) report(ctx context.Context, report, runID string, diags ledger.Diagnostics) {
	for kind, count := range diags.CountByKind() {
		if s.recorder != nil {
			s.recorder.AddDiagnostics(string(kind), count)
		}
	}
	for _, d := range diags {
		level := slog.LevelInfo
		if d.Severity == ledger.SeverityWarning {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, d.Message,
			slog.String("report", report),
			slog.String("run_id", runID),
			slog.String("kind", string(d.Kind)),
			slog.String("account_code", d.AccountCode),
			slog.String("transaction_id", d.TransactionID),
			slog.String("client_id", d.ClientID),
			slog.String("loan_id", d.LoanID))
	}
}
