// Package totals computes subtotals and grand totals over grouping trees and
// checks double-entry balance.
package totals

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/microfin/internal/ledger"
	"github.com/odyssey-erp/microfin/internal/ledger/grouping"
)

// Posting is anything with a debit and a credit column.
type Posting interface {
	DebitAmount() decimal.Decimal
	CreditAmount() decimal.Decimal
}

// Node annotates a group with its totals.
type Node[T Posting] struct {
	Group          *grouping.Group[T]
	Subtotal       ledger.Totals
	ParentSubtotal ledger.Totals
	Children       []*Node[T]
}

// Tree is a reconciled grouping result.
type Tree[T Posting] struct {
	Roots      []*Node[T]
	GrandTotal ledger.Totals
}

// Reconcile annotates groups in one post-order pass. A leaf sums its items, a
// parent sums its children, and the grand total sums the roots.
func Reconcile[T Posting](groups []*grouping.Group[T]) Tree[T] {
	tree := Tree[T]{Roots: make([]*Node[T], 0, len(groups))}
	for _, g := range groups {
		node := reconcileNode(g)
		tree.GrandTotal = tree.GrandTotal.Add(node.Subtotal)
		tree.Roots = append(tree.Roots, node)
	}
	for _, n := range tree.Roots {
		setParent(n, tree.GrandTotal)
	}
	return tree
}

func reconcileNode[T Posting](g *grouping.Group[T]) *Node[T] {
	node := &Node[T]{Group: g}
	if g.IsLeaf() {
		node.Subtotal = Sum(g.Items)
		return node
	}
	node.Children = make([]*Node[T], 0, len(g.Children))
	for _, c := range g.Children {
		child := reconcileNode(c)
		node.Subtotal = node.Subtotal.Add(child.Subtotal)
		node.Children = append(node.Children, child)
	}
	return node
}

func setParent[T Posting](n *Node[T], parent ledger.Totals) {
	n.ParentSubtotal = parent
	for _, c := range n.Children {
		setParent(c, n.Subtotal)
	}
}

// Sum totals the debit and credit columns of items.
func Sum[T Posting](items []T) ledger.Totals {
	var t ledger.Totals
	for _, it := range items {
		t = t.AddEntry(it.DebitAmount(), it.CreditAmount())
	}
	return t
}

// Walk visits nodes depth first, parents before children.
func (t Tree[T]) Walk(fn func(*Node[T])) {
	var visit func([]*Node[T])
	visit = func(nodes []*Node[T]) {
		for _, n := range nodes {
			fn(n)
			visit(n.Children)
		}
	}
	visit(t.Roots)
}
