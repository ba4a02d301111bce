// Package export writes assembled reports as flat spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/totals"
	"github.com/odyssey-erp/microfin/internal/loans/aging"
	"github.com/odyssey-erp/microfin/internal/reports"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names.
const (
	SummarySheet   = "Summary"
	AgingSheet     = "Aging"
	WorksheetSheet = "Release"
)

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func newWorkbook(sheet string) (*sheetWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &sheetWriter{f: f, sheet: sheet, row: 1}, nil
}

func (s *sheetWriter) append(values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	if err := s.f.SetSheetRow(s.sheet, cell, &values); err != nil {
		return fmt.Errorf("export: row %d: %w", s.row, err)
	}
	s.row++
	return nil
}

func (s *sheetWriter) finish(w io.Writer) error {
	defer func() { _ = s.f.Close() }()
	if err := s.f.SetPanes(s.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return s.f.Write(w)
}

func money(d decimal.Decimal) float64 {
	return ledger.Round(d).InexactFloat64()
}

// LedgerSummary writes one row per summary line. Labels are indented by depth.
func LedgerSummary(w io.Writer, summary reports.LedgerSummary) error {
	sw, err := newWorkbook(SummarySheet)
	if err != nil {
		return err
	}
	if err := sw.append("Kind", "Label", "Date", "Transaction", "Account", "Client", "Debit", "Credit"); err != nil {
		return err
	}
	for _, r := range summary.Rows {
		date := ""
		if r.Date != nil {
			date = r.Date.Format(time.DateOnly)
		}
		label := r.Label
		if r.Depth > 0 {
			label = strings.Repeat("  ", r.Depth) + label
		}
		if r.Kind == totals.RowSubtotal {
			label = "Total " + strings.TrimSpace(label)
		}
		if err := sw.append(string(r.Kind), label, date, r.TransactionNo, r.AccountCode, r.ClientName, money(r.Debit), money(r.Credit)); err != nil {
			return err
		}
	}
	return sw.finish(w)
}

// Aging writes one row per loan with an amount column per bucket.
func Aging(w io.Writer, report reports.AgingReport) error {
	sw, err := newWorkbook(AgingSheet)
	if err != nil {
		return err
	}
	header := []any{"Client", "Loan"}
	for _, b := range aging.Buckets {
		header = append(header, string(b))
	}
	header = append(header, "Overdue")
	if err := sw.append(header...); err != nil {
		return err
	}
	line := func(client, loan string, res aging.Result) error {
		values := []any{client, loan}
		for _, b := range aging.Buckets {
			values = append(values, money(res.Get(b)))
		}
		values = append(values, money(res.Overdue()))
		return sw.append(values...)
	}
	for _, l := range report.Loans {
		if err := line(l.ClientName, l.LoanID, l.Result); err != nil {
			return err
		}
	}
	if err := line("Total", "", report.Total); err != nil {
		return err
	}
	return sw.finish(w)
}

// ReleaseWorksheet writes the amortization figures of every computed loan.
// Failed loans are listed with their error.
func ReleaseWorksheet(w io.Writer, ws reports.ReleaseWorksheet) error {
	sw, err := newWorkbook(WorksheetSheet)
	if err != nil {
		return err
	}
	if err := sw.append("Loan", "Client", "Principal", "Interest", "Weeks", "Weekly Amortization", "Deductions", "Net Proceeds", "Error"); err != nil {
		return err
	}
	for _, r := range ws.Results {
		if r.Result == nil {
			if err := sw.append(r.LoanID, r.ClientID, nil, nil, nil, nil, nil, nil, r.Error); err != nil {
				return err
			}
			continue
		}
		res := r.Result.Display()
		if err := sw.append(r.LoanID, r.ClientID, money(res.Principal), money(res.Interest), res.TermWeeks,
			money(res.WeeklyAmortization), money(res.TotalDeductions), money(res.NetLoanProceeds), ""); err != nil {
			return err
		}
	}
	if err := sw.append("Total", "", money(ws.TotalPrincipal), nil, nil, nil, money(ws.TotalDeductions), money(ws.TotalNet), ""); err != nil {
		return err
	}
	return sw.finish(w)
}
