package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/totals"
	"github.com/odyssey-erp/microfin/internal/loans/aging"
	"github.com/odyssey-erp/microfin/internal/loans/amortization"
	"github.com/odyssey-erp/microfin/internal/reports"
	_ "github.com/odyssey-erp/microfin/testing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLedgerSummaryWorkbook(t *testing.T) {
	date := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	summary := reports.LedgerSummary{
		Rows: []reports.SummaryRow{
			{Kind: totals.RowGroup, Depth: 0, Label: "1131"},
			{Kind: totals.RowDetail, Depth: 1, Debit: d("1000.005"), Date: &date, TransactionNo: "LR-0001", AccountCode: "1131", ClientName: "C1"},
			{Kind: totals.RowSubtotal, Depth: 0, Label: "1131", Debit: d("1000.005")},
			{Kind: totals.RowGrandTotal, Label: "Grand Total", Debit: d("1000.005")},
		},
		GrandTotal: ledger.Totals{Debit: d("1000.005")},
	}
	var buf bytes.Buffer
	require.NoError(t, LedgerSummary(&buf, summary))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	require.Equal(t, "Kind", rows[0][0])
	require.Equal(t, "2024-01-05", rows[2][2])
	require.Equal(t, "LR-0001", rows[2][3])
	require.Equal(t, "1000.01", rows[2][6])
	require.Equal(t, "Total 1131", rows[3][1])
	require.Equal(t, "grand_total", rows[4][0])
}

func TestAgingWorkbook(t *testing.T) {
	res := aging.Result{Amounts: map[aging.Bucket]decimal.Decimal{aging.D1to30: d("200")}, Valid: true}
	report := reports.AgingReport{
		Loans: []aging.LoanAging{{ClientID: "c1", ClientName: "C1", LoanID: "L1", Result: res}},
		Total: res,
	}
	var buf bytes.Buffer
	require.NoError(t, Aging(&buf, report))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(AgingSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "d1to30", rows[0][3])
	require.Equal(t, "200", rows[1][3])
	require.Equal(t, "200", rows[1][10])
	require.Equal(t, "Total", rows[2][0])
}

func TestReleaseWorksheetWorkbook(t *testing.T) {
	calc := amortization.NewCalculator(amortization.Policy{ServiceFeePerThousand: d("5")})
	res, err := calc.Compute(d("10000"), d("24"), 20, d("150"))
	require.NoError(t, err)
	ws := reports.ReleaseWorksheet{
		Results: []amortization.BatchResult{
			{LoanID: "a", ClientID: "c1", Result: &res},
			{LoanID: "b", ClientID: "c2", Error: "amortization: term must be positive: 0 weeks"},
		},
		TotalPrincipal: d("10000"),
		TotalNet:       d("10000"),
		Failed:         1,
	}
	var buf bytes.Buffer
	require.NoError(t, ReleaseWorksheet(&buf, ws))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(WorksheetSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "677.5", rows[1][5])
	require.Equal(t, "amortization: term must be positive: 0 weeks", rows[2][8])
	require.Equal(t, "Total", rows[3][0])
}
