package totals

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/grouping"
)

// Epsilon is the tolerance applied when comparing debit and credit sums.
var Epsilon = decimal.New(1, -6)

// BalanceResult reports the debit/credit comparison of one transaction.
type BalanceResult struct {
	TransactionID string          `json:"transactionId"`
	Balanced      bool            `json:"balanced"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Discrepancy   decimal.Decimal `json:"discrepancy"`
	EmptyLines    int             `json:"emptyLines"`
}

// CheckBalance compares summed debits to summed credits for entries that share
// one parent transaction.
func CheckBalance(entries []ledger.Entry) BalanceResult {
	sum := Sum(entries)
	diff := sum.Debit.Sub(sum.Credit).Abs()
	res := BalanceResult{
		Balanced:    diff.LessThanOrEqual(Epsilon),
		Debit:       sum.Debit,
		Credit:      sum.Credit,
		Discrepancy: diff,
	}
	for _, e := range entries {
		if !e.DebitPresent && !e.CreditPresent {
			res.EmptyLines++
		}
	}
	if len(entries) > 0 {
		res.TransactionID = entries[0].Parent.ID
	}
	return res
}

// CheckTransactions checks every parent transaction found in entries, in
// first-seen order, and reports each mismatch as a warning. Lines without a
// parent are reported one by one and take no part in any balance. Figures are
// never adjusted.
func CheckTransactions(entries []ledger.Entry) ([]BalanceResult, ledger.Diagnostics) {
	var diags ledger.Diagnostics
	parented := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Parent.ID == "" {
			diags.Add(ledger.OrphanEntry(e))
			continue
		}
		parented = append(parented, e)
	}
	groups := grouping.GroupBy(parented, ledger.ByTransaction)
	results := make([]BalanceResult, 0, len(groups))
	for _, g := range groups {
		res := CheckBalance(g.Items)
		results = append(results, res)
		if !res.Balanced {
			diags.Add(ledger.BalanceMismatch(res.TransactionID, res.Debit, res.Credit))
		}
	}
	return results, diags
}
