package reports

import (
	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/grouping"
	"github.com/odyssey-erp/microfin/internal/ledger/totals"
)

type layoutSpec struct {
	keys  []grouping.KeyFunc[ledger.Entry]
	label totals.LabelFunc[ledger.Entry]
}

var layouts = map[Layout]layoutSpec{
	LayoutAccountClient: {
		keys: []grouping.KeyFunc[ledger.Entry]{ledger.ByAccountCode, ledger.ByClient},
		label: func(n *totals.Node[ledger.Entry]) string {
			if n.Group.Depth == 0 {
				return ledger.AccountLabel(n.Group.Items)
			}
			if n.Group.Key.IsNull() {
				return grouping.NotApplicable
			}
			return ledger.ClientLabel(n.Group.Items)
		},
	},
	LayoutBankDate: {
		keys: []grouping.KeyFunc[ledger.Entry]{ledger.ByBank, ledger.ByDate},
		label: func(n *totals.Node[ledger.Entry]) string {
			if n.Group.Depth == 0 && !n.Group.Key.IsNull() {
				for _, e := range n.Group.Items {
					if e.Parent.Bank != nil && e.Parent.Bank.Name != "" {
						return e.Parent.Bank.Name
					}
				}
			}
			return n.Group.Label
		},
	},
	LayoutOfficerMonth: {
		keys: []grouping.KeyFunc[ledger.Entry]{ledger.ByOfficerMonth},
		label: func(n *totals.Node[ledger.Entry]) string {
			officer := grouping.NotApplicable
			for _, e := range n.Group.Items {
				if e.Parent.Officer != nil && e.Parent.Officer.Name != "" {
					officer = e.Parent.Officer.Name
					break
				}
			}
			return officer + " / " + n.Group.Key[1].Label()
		},
	},
	LayoutKindTransaction: {
		keys: []grouping.KeyFunc[ledger.Entry]{ledger.ByKind, ledger.ByTransaction},
		label: func(n *totals.Node[ledger.Entry]) string {
			if n.Group.Depth == 1 && len(n.Group.Items) > 0 && n.Group.Items[0].Parent.Code != "" {
				return n.Group.Items[0].Parent.Code
			}
			return n.Group.Label
		},
	},
}

func flattenRows(rows []totals.Row[ledger.Entry]) []SummaryRow {
	out := make([]SummaryRow, len(rows))
	for i, r := range rows {
		row := SummaryRow{
			Kind:   r.Kind,
			Depth:  r.Depth,
			Label:  r.Label,
			Debit:  r.Totals.Debit,
			Credit: r.Totals.Credit,
		}
		if e := r.Item; e != nil {
			row.TransactionID = e.Parent.ID
			row.TransactionNo = e.Parent.Code
			row.TxKind = e.Parent.Kind
			row.AccountCode = e.AccountCode.Code
			if !e.Parent.Date.IsZero() {
				date := e.Parent.Date
				row.Date = &date
			}
			if e.Client != nil {
				row.ClientName = e.Client.Name
			}
		}
		out[i] = row
	}
	return out
}
