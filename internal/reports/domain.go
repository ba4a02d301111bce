// Package reports assembles render-ready report data by running ledger entries
// through normalization, classification, grouping, reconciliation and aging.
package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/classify"
	"github.com/odyssey-erp/microfin/internal/ledger/polarity"
	"github.com/odyssey-erp/microfin/internal/ledger/totals"
	"github.com/odyssey-erp/microfin/internal/loans/aging"
	"github.com/odyssey-erp/microfin/internal/loans/amortization"
)

// ErrInvalidFilter indicates a report request that failed validation.
var ErrInvalidFilter = errors.New("reports: invalid filter")

// Layout selects the grouping levels of a ledger summary.
type Layout string

const (
	// LayoutAccountClient groups by account code, then client.
	LayoutAccountClient Layout = "account_client"
	// LayoutBankDate groups by bank, then transaction date.
	LayoutBankDate Layout = "bank_date"
	// LayoutOfficerMonth groups by loan officer and posting month.
	LayoutOfficerMonth Layout = "officer_month"
	// LayoutKindTransaction groups by transaction kind, then transaction.
	LayoutKindTransaction Layout = "kind_transaction"
)

// Filter scopes the ledger entries a report reads.
type Filter struct {
	From     time.Time                `json:"from" validate:"required"`
	To       time.Time                `json:"to" validate:"required,gtefield=From"`
	Kinds    []ledger.TransactionKind `json:"kinds,omitempty"`
	ClientID string                   `json:"clientId,omitempty"`
	Layout   Layout                   `json:"layout,omitempty" validate:"omitempty,oneof=account_client bank_date officer_month kind_transaction"`
	Details  bool                     `json:"details"`
}

// AgingFilter scopes a receivables aging run.
type AgingFilter struct {
	AsOf     time.Time `json:"asOf" validate:"required"`
	ClientID string    `json:"clientId,omitempty"`
}

var validate = validator.New()

// Validate checks the filter and fills defaults.
func (f *Filter) Validate() error {
	if f.Layout == "" {
		f.Layout = LayoutAccountClient
	}
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return nil
}

// Validate checks the aging filter.
func (f AgingFilter) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return nil
}

func (f Filter) token() string {
	kinds := make([]string, len(f.Kinds))
	for i, k := range f.Kinds {
		kinds[i] = string(k)
	}
	return strings.Join([]string{
		f.From.Format(time.DateOnly),
		f.To.Format(time.DateOnly),
		strings.Join(kinds, ","),
		f.ClientID,
		string(f.Layout),
		fmt.Sprintf("%t", f.Details),
	}, "|")
}

func (f AgingFilter) token() string {
	return f.AsOf.Format(time.DateOnly) + "|" + f.ClientID
}

// SummaryRow is one flattened line of a ledger summary.
type SummaryRow struct {
	Kind          totals.RowKind         `json:"kind"`
	Depth         int                    `json:"depth"`
	Label         string                 `json:"label"`
	Debit         decimal.Decimal        `json:"debit"`
	Credit        decimal.Decimal        `json:"credit"`
	TransactionID string                 `json:"transactionId,omitempty"`
	TransactionNo string                 `json:"transactionNo,omitempty"`
	Date          *time.Time             `json:"date,omitempty"`
	TxKind        ledger.TransactionKind `json:"txKind,omitempty"`
	AccountCode   string                 `json:"accountCode,omitempty"`
	ClientName    string                 `json:"clientName,omitempty"`
}

// LedgerSummary is the grouped, subtotaled view of a ledger extract.
type LedgerSummary struct {
	RunID        string                            `json:"runId"`
	Filter       Filter                            `json:"filter"`
	TableVersion string                            `json:"tableVersion"`
	Rows         []SummaryRow                      `json:"rows"`
	GrandTotal   ledger.Totals                     `json:"grandTotal"`
	BucketTotals map[classify.Bucket]ledger.Totals `json:"bucketTotals"`
	Balances     []totals.BalanceResult            `json:"balances"`
	Diagnostics  ledger.Diagnostics                `json:"diagnostics"`
}

// Loan is the receivable record needed to age a loan.
type Loan struct {
	ClientID   string
	ClientName string
	LoanID     string
	Cycle      *int
	Maturity   *time.Time
	Principal  decimal.Decimal
}

// OutstandingAging ages the unpaid principal of one loan as of a date.
type OutstandingAging struct {
	ClientID string          `json:"clientId"`
	LoanID   string          `json:"loanId"`
	Balance  decimal.Decimal `json:"balance"`
	Result   aging.Result    `json:"result"`
}

// AgingReport holds per-loan payment aging and outstanding balances.
type AgingReport struct {
	RunID       string             `json:"runId"`
	Filter      AgingFilter        `json:"filter"`
	Loans       []aging.LoanAging  `json:"loans"`
	Total       aging.Result       `json:"total"`
	Outstanding []OutstandingAging `json:"outstanding"`
	Diagnostics ledger.Diagnostics `json:"diagnostics"`
}

// ReleaseWorksheet is the amortization batch for a loan release.
type ReleaseWorksheet struct {
	RunID           string                     `json:"runId"`
	Results         []amortization.BatchResult `json:"results"`
	TotalPrincipal  decimal.Decimal            `json:"totalPrincipal"`
	TotalDeductions decimal.Decimal            `json:"totalDeductions"`
	TotalNet        decimal.Decimal            `json:"totalNet"`
	Failed          int                        `json:"failed"`
}

// ClientBalances is the polarity-signed balance of one bucket per client.
type ClientBalances struct {
	RunID       string                   `json:"runId"`
	Filter      Filter                   `json:"filter"`
	Bucket      classify.Bucket          `json:"bucket"`
	Balances    []polarity.ClientBalance `json:"balances"`
	Total       decimal.Decimal          `json:"total"`
	Diagnostics ledger.Diagnostics       `json:"diagnostics"`
}
