// Package polarity accumulates per-client balances across transaction kinds,
// where later vouchers reverse amounts accumulated by loan releases.
package polarity

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/grouping"
)

// Resolver returns the sign for a transaction kind.
type Resolver interface {
	Polarity(kind ledger.TransactionKind) (int, bool)
}

// Contribution is one entry's signed share of a client balance.
type Contribution struct {
	TransactionID string                 `json:"transactionId"`
	Kind          ledger.TransactionKind `json:"kind"`
	AccountCode   string                 `json:"accountCode"`
	Amount        decimal.Decimal        `json:"amount"`
}

// ClientBalance is the signed total for one client.
type ClientBalance struct {
	ClientID      string          `json:"clientId"`
	ClientName    string          `json:"clientName"`
	Balance       decimal.Decimal `json:"balance"`
	Contributions []Contribution  `json:"contributions"`
}

// Accumulate sums, per client and in first-seen order, the active amount of
// every entry whose code passes include, signed by its transaction kind.
// Entries of a kind without a configured polarity are skipped and reported.
func Accumulate(entries []ledger.Entry, include func(code string) bool, signs Resolver) ([]ClientBalance, ledger.Diagnostics) {
	var diags ledger.Diagnostics
	reported := make(map[ledger.TransactionKind]struct{})
	relevant := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		if include == nil || include(e.AccountCode.Code) {
			relevant = append(relevant, e)
		}
	}
	groups := grouping.GroupBy(relevant, ledger.ByClient)
	out := make([]ClientBalance, 0, len(groups))
	for _, g := range groups {
		bal := ClientBalance{ClientName: ledger.ClientLabel(g.Items)}
		if !g.Key.IsNull() {
			bal.ClientID = g.Key[0].Value()
		}
		for _, e := range g.Items {
			sign, ok := signs.Polarity(e.Parent.Kind)
			if !ok {
				if _, done := reported[e.Parent.Kind]; !done {
					reported[e.Parent.Kind] = struct{}{}
					diags.Add(ledger.Diagnostic{
						Kind:          ledger.DiagUnknownPolarity,
						Severity:      ledger.SeverityWarning,
						Message:       fmt.Sprintf("no polarity configured for transaction kind %q", e.Parent.Kind),
						TransactionID: e.Parent.ID,
						ClientID:      e.ClientID(),
					})
				}
				continue
			}
			amount := e.Active().Mul(decimal.NewFromInt(int64(sign)))
			bal.Balance = bal.Balance.Add(amount)
			bal.Contributions = append(bal.Contributions, Contribution{
				TransactionID: e.Parent.ID,
				Kind:          e.Parent.Kind,
				AccountCode:   e.AccountCode.Code,
				Amount:        amount,
			})
		}
		out = append(out, bal)
	}
	return out, diags
}
