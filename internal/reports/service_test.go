package reports

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/classify"
	"github.com/odyssey-erp/microfin/internal/ledger/totals"
	"github.com/odyssey-erp/microfin/internal/loans/aging"
	"github.com/odyssey-erp/microfin/internal/loans/amortization"
)

const testTable = `
version: "t1"
buckets:
  principal: ["1131"]
  cgt: ["2030"]
  bank: ["1011"]
polarity:
  loan_release: 1
  acknowledgement: 1
  journal_voucher: -1
`

type stubStore struct {
	mu      sync.Mutex
	entries []ledger.RawEntry
	loans   []Loan
	calls   int
	err     error
}

func (s *stubStore) ListEntries(ctx context.Context, filter Filter) ([]ledger.RawEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.entries, s.err
}

func (s *stubStore) ListLoans(ctx context.Context, filter AgingFilter) ([]Loan, error) {
	return s.loans, s.err
}

func (s *stubStore) ListLoanEntries(ctx context.Context, filter AgingFilter) ([]ledger.RawEntry, error) {
	return s.entries, s.err
}

type stubRecorder struct {
	mu          sync.Mutex
	diagnostics map[string]int
	hits        int
	misses      int
}

func (r *stubRecorder) AddDiagnostics(kind string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.diagnostics == nil {
		r.diagnostics = make(map[string]int)
	}
	r.diagnostics[kind] += count
}

func (r *stubRecorder) CacheLookup(report string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func amt(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func cycle(n int) *int { return &n }

func raw(code string, debit, credit *decimal.Decimal, client string, tx ledger.ParentTransaction, c *int) ledger.RawEntry {
	e := ledger.RawEntry{AccountCode: ledger.AccountCode{Code: code}, Debit: debit, Credit: credit, Parent: tx, Cycle: c}
	if client != "" {
		e.Client = &ledger.Client{ID: client, Name: strings.ToUpper(client)}
	}
	return e
}

func sampleEntries() []ledger.RawEntry {
	lr := ledger.ParentTransaction{ID: "lr-1", Kind: ledger.KindLoanRelease, Code: "LR-0001", Date: day("2024-01-05")}
	ack := ledger.ParentTransaction{ID: "ack-1", Kind: ledger.KindAcknowledgement, Code: "AR-0001", Date: day("2024-01-20")}
	jv := ledger.ParentTransaction{ID: "jv-1", Kind: ledger.KindJournalVoucher, Code: "JV-0001", Date: day("2024-01-25")}
	return []ledger.RawEntry{
		raw("1131", amt("1000"), nil, "c1", lr, cycle(1)),
		raw("2030", nil, amt("300"), "c1", lr, cycle(1)),
		raw("1011", nil, amt("700"), "c1", lr, nil),
		raw("1011", amt("200"), nil, "c1", ack, nil),
		raw("1131", nil, amt("200"), "c1", ack, cycle(1)),
		raw("2030", amt("50"), nil, "c1", jv, nil),
		raw("9999", nil, amt("49"), "", jv, nil),
	}
}

func newTestService(t *testing.T, store Store, cache *Cache, rec Recorder) *Service {
	t.Helper()
	table, err := classify.ParseTable(strings.NewReader(testTable))
	require.NoError(t, err)
	classifier, err := classify.NewClassifier(table)
	require.NoError(t, err)
	savings, err := amortization.NewSavingsTable([]amortization.SavingsStep{
		{UpTo: decimal.NewFromInt(20000), Weekly: decimal.NewFromInt(150)},
	})
	require.NoError(t, err)
	svc, err := NewService(Config{
		Store:      store,
		Classifier: classifier,
		Calculator: amortization.NewCalculator(amortization.Policy{
			ServiceFeePerThousand: decimal.NewFromInt(5),
			ServiceChargePct:      decimal.NewFromInt(3),
		}),
		Savings:     savings,
		Cache:       cache,
		Recorder:    rec,
		Concurrency: 2,
	})
	require.NoError(t, err)
	return svc
}

func januaryFilter() Filter {
	return Filter{From: day("2024-01-01"), To: day("2024-01-31"), Details: true}
}

func TestLedgerSummaryGroupsAndReconciles(t *testing.T) {
	store := &stubStore{entries: sampleEntries()}
	rec := &stubRecorder{}
	svc := newTestService(t, store, nil, rec)

	summary, err := svc.LedgerSummary(context.Background(), januaryFilter())
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, "t1", summary.TableVersion)
	require.Equal(t, LayoutAccountClient, summary.Filter.Layout)

	require.Equal(t, "1250", summary.GrandTotal.Debit.String())
	require.Equal(t, "1249", summary.GrandTotal.Credit.String())

	var headers []string
	var subtotal decimal.Decimal
	for _, row := range summary.Rows {
		if row.Kind == totals.RowGroup && row.Depth == 0 {
			headers = append(headers, row.Label)
		}
		if row.Kind == totals.RowSubtotal && row.Depth == 0 {
			subtotal = subtotal.Add(row.Debit)
		}
	}
	require.Equal(t, []string{"1131", "2030", "1011", "9999"}, headers)
	require.True(t, subtotal.Equal(summary.GrandTotal.Debit))
	last := summary.Rows[len(summary.Rows)-1]
	require.Equal(t, totals.RowGrandTotal, last.Kind)

	require.Equal(t, "1000", summary.BucketTotals[classify.BucketPrincipal].Debit.String())
	require.Equal(t, "200", summary.BucketTotals[classify.BucketPrincipal].Credit.String())
	require.Equal(t, "49", summary.BucketTotals[classify.BucketMisc].Credit.String())

	require.Len(t, summary.Balances, 3)
	require.True(t, summary.Balances[0].Balanced)
	require.False(t, summary.Balances[2].Balanced)
	require.Equal(t, "1", summary.Balances[2].Discrepancy.String())

	counts := summary.Diagnostics.CountByKind()
	require.Equal(t, 1, counts[ledger.DiagUnclassifiedCode])
	require.Equal(t, 1, counts[ledger.DiagBalanceMismatch])
	require.Equal(t, 1, rec.diagnostics["balance_mismatch"])
	require.Equal(t, 1, rec.misses)
}

func TestLedgerSummaryServedFromCache(t *testing.T) {
	cache, _ := newTestCache(t)
	store := &stubStore{entries: sampleEntries()}
	rec := &stubRecorder{}
	svc := newTestService(t, store, cache, rec)
	ctx := context.Background()

	first, err := svc.LedgerSummary(ctx, januaryFilter())
	require.NoError(t, err)
	second, err := svc.LedgerSummary(ctx, januaryFilter())
	require.NoError(t, err)
	require.Equal(t, first.RunID, second.RunID)
	require.True(t, first.GrandTotal.Equal(second.GrandTotal))
	require.Equal(t, 1, store.calls)
	require.Equal(t, 1, rec.hits)

	require.NoError(t, cache.Bump(ctx))
	third, err := svc.LedgerSummary(ctx, januaryFilter())
	require.NoError(t, err)
	require.NotEqual(t, first.RunID, third.RunID)
	require.Equal(t, 2, store.calls)
}

func TestLedgerSummaryLayouts(t *testing.T) {
	svc := newTestService(t, &stubStore{entries: sampleEntries()}, nil, nil)
	filter := januaryFilter()
	filter.Layout = LayoutKindTransaction
	summary, err := svc.LedgerSummary(context.Background(), filter)
	require.NoError(t, err)
	var labels []string
	for _, row := range summary.Rows {
		if row.Kind == totals.RowGroup && row.Depth == 1 {
			labels = append(labels, row.Label)
		}
	}
	require.Equal(t, []string{"LR-0001", "AR-0001", "JV-0001"}, labels)
}

func TestLedgerSummaryRejectsInvalidFilter(t *testing.T) {
	svc := newTestService(t, &stubStore{}, nil, nil)
	_, err := svc.LedgerSummary(context.Background(), Filter{From: day("2024-02-01"), To: day("2024-01-01")})
	require.ErrorIs(t, err, ErrInvalidFilter)

	filter := januaryFilter()
	filter.Layout = "by_color"
	_, err = svc.LedgerSummary(context.Background(), filter)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestLedgerSummaryPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := newTestService(t, &stubStore{err: boom}, nil, nil)
	_, err := svc.LedgerSummary(context.Background(), januaryFilter())
	require.ErrorIs(t, err, boom)

	negative := []ledger.RawEntry{raw("1131", amt("-1"), nil, "c1", ledger.ParentTransaction{ID: "x"}, nil)}
	svc = newTestService(t, &stubStore{entries: negative}, nil, nil)
	_, err = svc.LedgerSummary(context.Background(), januaryFilter())
	require.ErrorIs(t, err, ledger.ErrNegativeAmount)
}

func TestReceivablesAging(t *testing.T) {
	maturity := day("2024-01-10")
	store := &stubStore{
		entries: sampleEntries(),
		loans: []Loan{
			{ClientID: "c1", ClientName: "C1", LoanID: "L1", Cycle: cycle(1), Maturity: &maturity, Principal: decimal.NewFromInt(1000)},
			{ClientID: "c2", ClientName: "C2", LoanID: "L2", Principal: decimal.NewFromInt(500)},
		},
	}
	svc := newTestService(t, store, nil, nil)

	report, err := svc.ReceivablesAging(context.Background(), AgingFilter{AsOf: day("2024-03-01")})
	require.NoError(t, err)
	require.Len(t, report.Loans, 2)
	require.Equal(t, "L1", report.Loans[0].LoanID)
	require.Equal(t, "200", report.Loans[0].Result.Get(aging.D1to30).String())
	require.False(t, report.Loans[1].Result.Valid)
	require.Equal(t, "200", report.Total.Overdue().String())

	require.Len(t, report.Outstanding, 2)
	require.Equal(t, "800", report.Outstanding[0].Balance.String())
	require.Equal(t, "800", report.Outstanding[0].Result.Get(aging.D31to60).String())
	require.Equal(t, "500", report.Outstanding[1].Balance.String())
	require.True(t, report.Outstanding[1].Result.Overdue().IsZero())

	missing := report.Diagnostics.OfKind(ledger.DiagMissingMaturityDate)
	require.Len(t, missing, 1)
	require.Equal(t, "L2", missing[0].LoanID)
}

func TestReceivablesAgingIgnoresLaterPayments(t *testing.T) {
	maturity := day("2024-01-10")
	store := &stubStore{
		entries: sampleEntries(),
		loans:   []Loan{{ClientID: "c1", LoanID: "L1", Cycle: cycle(1), Maturity: &maturity, Principal: decimal.NewFromInt(1000)}},
	}
	svc := newTestService(t, store, nil, nil)
	report, err := svc.ReceivablesAging(context.Background(), AgingFilter{AsOf: day("2024-01-15")})
	require.NoError(t, err)
	require.True(t, report.Total.Overdue().IsZero())
	require.Equal(t, "1000", report.Outstanding[0].Balance.String())
	require.Equal(t, "1000", report.Outstanding[0].Result.Get(aging.D1to30).String())
}

func collectionEntries(c *int) []ledger.RawEntry {
	ack := ledger.ParentTransaction{ID: "ack-7", Kind: ledger.KindAcknowledgement, Code: "AR-0007", Date: day("2024-01-20")}
	return []ledger.RawEntry{
		raw("1011", amt("200"), nil, "c1", ack, nil),
		raw("1131", nil, amt("200"), "c1", ack, c),
	}
}

func TestReceivablesAgingFallsBackToOnlyLoan(t *testing.T) {
	maturity := day("2024-01-10")
	store := &stubStore{
		entries: collectionEntries(cycle(3)),
		loans:   []Loan{{ClientID: "c1", LoanID: "L1", Maturity: &maturity, Principal: decimal.NewFromInt(1000)}},
	}
	svc := newTestService(t, store, nil, nil)
	report, err := svc.ReceivablesAging(context.Background(), AgingFilter{AsOf: day("2024-03-01")})
	require.NoError(t, err)
	require.Equal(t, "200", report.Loans[0].Result.Get(aging.D1to30).String())
	require.Len(t, report.Outstanding, 1)
	require.Equal(t, "800", report.Outstanding[0].Balance.String())
	require.Empty(t, report.Diagnostics.OfKind(ledger.DiagUnmatchedPayment))
}

func TestReceivablesAgingReportsUnmatchedPayment(t *testing.T) {
	maturity := day("2024-01-10")
	store := &stubStore{
		entries: collectionEntries(nil),
		loans: []Loan{
			{ClientID: "c1", LoanID: "L1", Cycle: cycle(1), Maturity: &maturity, Principal: decimal.NewFromInt(1000)},
			{ClientID: "c1", LoanID: "L2", Cycle: cycle(2), Maturity: &maturity, Principal: decimal.NewFromInt(400)},
		},
	}
	svc := newTestService(t, store, nil, nil)
	report, err := svc.ReceivablesAging(context.Background(), AgingFilter{AsOf: day("2024-03-01")})
	require.NoError(t, err)
	require.True(t, report.Total.Overdue().IsZero())
	require.Len(t, report.Outstanding, 2)
	require.Equal(t, "1000", report.Outstanding[0].Balance.String())
	require.Equal(t, "400", report.Outstanding[1].Balance.String())

	unmatched := report.Diagnostics.OfKind(ledger.DiagUnmatchedPayment)
	require.Len(t, unmatched, 1)
	require.Equal(t, ledger.SeverityWarning, unmatched[0].Severity)
	require.Equal(t, "c1", unmatched[0].ClientID)
	require.Equal(t, "ack-7", unmatched[0].TransactionID)
	require.Equal(t, "200", unmatched[0].Amount.String())
}

func TestLedgerSummaryForClientKeepsTransactionsWhole(t *testing.T) {
	lr := ledger.ParentTransaction{ID: "lr-9", Kind: ledger.KindLoanRelease, Code: "LR-0009", Date: day("2024-01-08")}
	store := &stubStore{entries: []ledger.RawEntry{
		raw("1131", amt("500"), nil, "c1", lr, cycle(1)),
		raw("1131", amt("300"), nil, "c2", lr, cycle(1)),
		raw("1011", nil, amt("800"), "", lr, nil),
	}}
	svc := newTestService(t, store, nil, nil)
	filter := januaryFilter()
	filter.ClientID = "c1"

	summary, err := svc.LedgerSummary(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, summary.Balances, 1)
	require.True(t, summary.Balances[0].Balanced)
	require.Empty(t, summary.Diagnostics.OfKind(ledger.DiagBalanceMismatch))

	require.Equal(t, "500", summary.GrandTotal.Debit.String())
	require.True(t, summary.GrandTotal.Credit.IsZero())
	require.Equal(t, "500", summary.BucketTotals[classify.BucketPrincipal].Debit.String())
	var headers []string
	for _, row := range summary.Rows {
		if row.Kind == totals.RowGroup && row.Depth == 0 {
			headers = append(headers, row.Label)
		}
	}
	require.Equal(t, []string{"1131"}, headers)

	balances, err := svc.ClientBalances(context.Background(), filter, classify.BucketPrincipal)
	require.NoError(t, err)
	require.Len(t, balances.Balances, 1)
	require.Equal(t, "c1", balances.Balances[0].ClientID)
}

func TestReleaseWorksheet(t *testing.T) {
	svc := newTestService(t, &stubStore{}, nil, nil)
	ws, err := svc.ReleaseWorksheet(context.Background(), []amortization.LoanTerms{
		{LoanID: "a", ClientID: "c1", Principal: decimal.NewFromInt(10000), AnnualInterestPct: decimal.NewFromInt(24), TermWeeks: 20},
		{LoanID: "b", ClientID: "c2", Principal: decimal.NewFromInt(5000), AnnualInterestPct: decimal.NewFromInt(24), TermWeeks: 0},
	})
	require.NoError(t, err)
	require.Equal(t, 1, ws.Failed)
	require.Equal(t, "10000", ws.TotalPrincipal.String())
	require.Equal(t, "300", ws.TotalDeductions.String())
	require.Equal(t, "9700", ws.TotalNet.String())
	require.Equal(t, "677.5", ws.Results[0].Result.WeeklyAmortization.String())
	require.ErrorIs(t, ws.Results[1].Err, amortization.ErrInvalidTerm)

	_, err = svc.ReleaseWorksheet(context.Background(), []amortization.LoanTerms{{TermWeeks: 4}})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = svc.ReleaseWorksheet(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestClientBalances(t *testing.T) {
	svc := newTestService(t, &stubStore{entries: sampleEntries()}, nil, nil)
	res, err := svc.ClientBalances(context.Background(), januaryFilter(), classify.BucketCGT)
	require.NoError(t, err)
	require.Len(t, res.Balances, 1)
	require.Equal(t, "c1", res.Balances[0].ClientID)
	require.Equal(t, "250", res.Balances[0].Balance.String())
	require.Equal(t, "250", res.Total.String())
	require.Empty(t, res.Diagnostics)

	_, err = svc.ClientBalances(context.Background(), januaryFilter(), classify.BucketWelfareFund)
	require.ErrorIs(t, err, ErrInvalidFilter)
}
