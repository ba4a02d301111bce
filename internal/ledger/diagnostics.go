package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiagnosticKind names a data-quality condition detected during aggregation.
type DiagnosticKind string

const (
	DiagBalanceMismatch     DiagnosticKind = "balance_mismatch"
	DiagMissingMaturityDate DiagnosticKind = "missing_maturity_date"
	DiagUnclassifiedCode    DiagnosticKind = "unclassified_code"
	DiagUnknownPolarity     DiagnosticKind = "unknown_polarity"
	DiagEmptyEntry          DiagnosticKind = "empty_entry"
	DiagOrphanEntry         DiagnosticKind = "orphan_entry"
	DiagUnmatchedPayment    DiagnosticKind = "unmatched_payment"
)

// Severity orders diagnostics for presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic is reported alongside a result and never aborts computation.
type Diagnostic struct {
	Kind          DiagnosticKind   `json:"kind"`
	Severity      Severity         `json:"severity"`
	Message       string           `json:"message"`
	AccountCode   string           `json:"accountCode,omitempty"`
	TransactionID string           `json:"transactionId,omitempty"`
	ClientID      string           `json:"clientId,omitempty"`
	LoanID        string           `json:"loanId,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

// Diagnostics is an ordered list of findings.
type Diagnostics []Diagnostic

// Add appends a diagnostic.
func (d *Diagnostics) Add(diag Diagnostic) {
	*d = append(*d, diag)
}

// Merge appends every diagnostic from other.
func (d *Diagnostics) Merge(other Diagnostics) {
	*d = append(*d, other...)
}

// Warnings returns only warning-level diagnostics.
func (d Diagnostics) Warnings() Diagnostics {
	return d.filter(func(x Diagnostic) bool { return x.Severity == SeverityWarning })
}

// OfKind returns diagnostics matching kind.
func (d Diagnostics) OfKind(kind DiagnosticKind) Diagnostics {
	return d.filter(func(x Diagnostic) bool { return x.Kind == kind })
}

// CountByKind tallies diagnostics per kind.
func (d Diagnostics) CountByKind() map[DiagnosticKind]int {
	out := make(map[DiagnosticKind]int)
	for _, x := range d {
		out[x.Kind]++
	}
	return out
}

// Unique drops repeated diagnostics, keeping the first occurrence.
func (d Diagnostics) Unique() Diagnostics {
	seen := make(map[string]struct{}, len(d))
	return d.filter(func(x Diagnostic) bool {
		k := strings.Join([]string{string(x.Kind), x.AccountCode, x.TransactionID, x.ClientID, x.LoanID, x.Message}, "\x00")
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}

func (d Diagnostics) filter(keep func(Diagnostic) bool) Diagnostics {
	var out Diagnostics
	for _, x := range d {
		if keep(x) {
			out = append(out, x)
		}
	}
	return out
}

// BalanceMismatch builds the warning raised when a transaction does not balance.
func BalanceMismatch(transactionID string, debit, credit decimal.Decimal) Diagnostic {
	diff := debit.Sub(credit).Abs()
	return Diagnostic{
		Kind:          DiagBalanceMismatch,
		Severity:      SeverityWarning,
		Message:       fmt.Sprintf("transaction %s debit %s != credit %s", transactionID, debit.String(), credit.String()),
		TransactionID: transactionID,
		Amount:        &diff,
	}
}

// UnclassifiedCode builds the info raised for a code absent from the table.
func UnclassifiedCode(code string) Diagnostic {
	return Diagnostic{
		Kind:        DiagUnclassifiedCode,
		Severity:    SeverityInfo,
		Message:     fmt.Sprintf("account code %s is not in any bucket, summed as misc", code),
		AccountCode: code,
	}
}

// MissingMaturityDate builds the warning raised when aging has no usable date.
func MissingMaturityDate(clientID, loanID string) Diagnostic {
	return Diagnostic{
		Kind:     DiagMissingMaturityDate,
		Severity: SeverityWarning,
		Message:  "maturity date missing, aging reported as zero",
		ClientID: clientID,
		LoanID:   loanID,
	}
}

// OrphanEntry builds the warning raised for a line without a parent
// transaction. Such lines are never balanced against each other.
func OrphanEntry(e Entry) Diagnostic {
	net := e.Debit.Sub(e.Credit)
	return Diagnostic{
		Kind:        DiagOrphanEntry,
		Severity:    SeverityWarning,
		Message:     fmt.Sprintf("line on account %s has no parent transaction", e.AccountCode.Code),
		AccountCode: e.AccountCode.Code,
		ClientID:    e.ClientID(),
		Amount:      &net,
	}
}

// UnmatchedPayment builds the warning raised when a collection cannot be tied
// to a loan and is left out of aging.
func UnmatchedPayment(clientID, transactionID string, amount decimal.Decimal) Diagnostic {
	return Diagnostic{
		Kind:          DiagUnmatchedPayment,
		Severity:      SeverityWarning,
		Message:       fmt.Sprintf("payment %s of client %s matches no loan", transactionID, clientID),
		TransactionID: transactionID,
		ClientID:      clientID,
		Amount:        &amount,
	}
}
