package totals

import (
	"github.com/odyssey-erp/microfin/internal/ledger"
)

// RowKind tells the presentation layer how to render a row.
type RowKind string

const (
	RowGroup      RowKind = "group"
	RowDetail     RowKind = "detail"
	RowSubtotal   RowKind = "subtotal"
	RowGrandTotal RowKind = "grand_total"
)

// Row is a flattened, render-ready line of a reconciled tree.
type Row[T Posting] struct {
	Kind   RowKind       `json:"kind"`
	Depth  int           `json:"depth"`
	Label  string        `json:"label"`
	Totals ledger.Totals `json:"totals"`
	Item   *T            `json:"item,omitempty"`
}

// LabelFunc overrides the label of a group header or subtotal.
type LabelFunc[T Posting] func(n *Node[T]) string

// Rows flattens the tree: a header per group, the detail items of each leaf,
// a subtotal per group and a final grand total.
func (t Tree[T]) Rows(details bool, label LabelFunc[T]) []Row[T] {
	if label == nil {
		label = func(n *Node[T]) string { return n.Group.Label }
	}
	var rows []Row[T]
	var visit func([]*Node[T])
	visit = func(nodes []*Node[T]) {
		for _, n := range nodes {
			name := label(n)
			rows = append(rows, Row[T]{Kind: RowGroup, Depth: n.Group.Depth, Label: name})
			if n.Group.IsLeaf() && details {
				for i := range n.Group.Items {
					item := n.Group.Items[i]
					rows = append(rows, Row[T]{
						Kind:   RowDetail,
						Depth:  n.Group.Depth + 1,
						Totals: ledger.Totals{Debit: item.DebitAmount(), Credit: item.CreditAmount()},
						Item:   &item,
					})
				}
			}
			visit(n.Children)
			rows = append(rows, Row[T]{Kind: RowSubtotal, Depth: n.Group.Depth, Label: name, Totals: n.Subtotal})
		}
	}
	visit(t.Roots)
	rows = append(rows, Row[T]{Kind: RowGrandTotal, Label: "Grand Total", Totals: t.GrandTotal})
	return rows
}
