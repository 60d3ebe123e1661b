// Package normalize rewrites a canonical plan tree into a form where
// structurally identical plans compare equal regardless of how the optimizer
// emitted them.
package normalize

import (
	"slices"
	"strings"

	"github.com/lance6716/query-plan-comparer/pkg/plan"
)

// Normalize returns a normalized copy of the plan. The input is not modified.
//
// Children of commutative operators are sorted by (operator, estimated cost,
// relation) so emission order stops mattering. Children of order-sensitive
// operators keep their order; the classification comes from the operator
// table in pkg/plan. Pass-through nodes with no effect of their own are
// collapsed into their only child, with the removed node recorded on the
// child so display can restore it.
func Normalize(p *plan.Plan) *plan.Plan {
	ret := p.Clone()
	ret.Root = normalizeNode(ret.Root)
	return ret
}

func normalizeNode(n *plan.PlanNode) *plan.PlanNode {
	for i, child := range n.Children {
		n.Children[i] = normalizeNode(child)
	}
	if plan.Commutative(n.Operator) {
		slices.SortStableFunc(n.Children, compareNodes)
	}
	return collapsePassThrough(n)
}

// collapsePassThrough replaces a no-op single-child node with that child. The
// removed node, stripped of its children, is appended to the child's
// Collapsed list so the rewrite is reversible for display.
func collapsePassThrough(n *plan.PlanNode) *plan.PlanNode {
	if !collapsible(n) {
		return n
	}
	child := n.Children[0]
	removed := *n
	removed.Children = nil
	removed.Collapsed = nil
	child.Collapsed = append(child.Collapsed, &removed)
	child.Collapsed = append(child.Collapsed, n.Collapsed...)
	return child
}

func collapsible(n *plan.PlanNode) bool {
	if n.Operator != plan.OpResult || len(n.Children) != 1 || len(n.Attributes) > 0 {
		return false
	}
	// only collapse when the node adds no cost of its own
	return n.SelfCost() == 0
}

func compareNodes(a, b *plan.PlanNode) int {
	if c := strings.Compare(a.Operator, b.Operator); c != 0 {
		return c
	}
	if a.EstimatedCost != b.EstimatedCost {
		if a.EstimatedCost < b.EstimatedCost {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Relation, b.Relation)
}
