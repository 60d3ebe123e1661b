package normalize

import (
	"testing"

	"github.com/lance6716/query-plan-comparer/pkg/plan"
	"github.com/stretchr/testify/require"
)

func wrap(root *plan.PlanNode) *plan.Plan {
	return &plan.Plan{Label: "test", Query: "SELECT 1", Root: root}
}

func TestCommutativeChildrenSorted(t *testing.T) {
	a := wrap(plan.NewNode4Test("Append||300|30",
		plan.NewNode4Test("SeqScan|t2|200|20"),
		plan.NewNode4Test("SeqScan|t1|100|10")))
	b := wrap(plan.NewNode4Test("Append||300|30",
		plan.NewNode4Test("SeqScan|t1|100|10"),
		plan.NewNode4Test("SeqScan|t2|200|20")))

	require.Equal(t, Normalize(a).Root, Normalize(b).Root)
	require.Equal(t, "t1", Normalize(a).Root.Children[0].Relation)
}

func TestCommutativeSortKeyOrder(t *testing.T) {
	// operator name sorts before cost, cost before relation
	root := wrap(plan.NewNode4Test("Append||1000|0",
		plan.NewNode4Test("SeqScan|b|50|0"),
		plan.NewNode4Test("SeqScan|a|50|0"),
		plan.NewNode4Test("IndexScan|z|500|0")))
	got := Normalize(root).Root
	require.Equal(t, "IndexScan", got.Children[0].Operator)
	require.Equal(t, "a", got.Children[1].Relation)
	require.Equal(t, "b", got.Children[2].Relation)
}

func TestOrderSensitiveChildrenKept(t *testing.T) {
	root := wrap(plan.NewNode4Test("NestedLoop||300|10",
		plan.NewNode4Test("SeqScan|t2|200|20"),
		plan.NewNode4Test("SeqScan|t1|100|10")))
	got := Normalize(root).Root
	require.Equal(t, "t2", got.Children[0].Relation)
	require.Equal(t, "t1", got.Children[1].Relation)
}

func TestInputNotModified(t *testing.T) {
	root := wrap(plan.NewNode4Test("Append||300|30",
		plan.NewNode4Test("SeqScan|t2|200|20"),
		plan.NewNode4Test("SeqScan|t1|100|10")))
	_ = Normalize(root)
	require.Equal(t, "t2", root.Root.Children[0].Relation)
}

func TestCollapsePassThrough(t *testing.T) {
	scan := plan.NewNode4Test("SeqScan|t|100|10")
	result := plan.NewNode4Test("Result||100|10", scan)
	got := Normalize(wrap(result)).Root

	require.Equal(t, plan.OpSeqScan, got.Operator)
	require.Len(t, got.Collapsed, 1)
	require.Equal(t, plan.OpResult, got.Collapsed[0].Operator)
	require.Empty(t, got.Collapsed[0].Children)
}

func TestNoCollapseWithOwnCost(t *testing.T) {
	scan := plan.NewNode4Test("SeqScan|t|100|10")
	result := plan.NewNode4Test("Result||150|10", scan)
	got := Normalize(wrap(result)).Root
	require.Equal(t, plan.OpResult, got.Operator)
}

func TestNoCollapseWithAttributes(t *testing.T) {
	scan := plan.NewNode4Test("SeqScan|t|100|10")
	result := plan.NewNode4Test("Result||100|10", scan)
	result.Attributes = map[string]string{"One-Time Filter": "(now() > 0)"}
	got := Normalize(wrap(result)).Root
	require.Equal(t, plan.OpResult, got.Operator)
}

func TestWarningsSurvive(t *testing.T) {
	p := wrap(plan.NewNode4Test("Limit||10|1", plan.NewNode4Test("SeqScan|t|100|1000")))
	p.Warnings = []plan.CostMonotonicityWarning{{Path: "plan", NodeCost: 10, ChildrenCost: 100}}
	got := Normalize(p)
	require.Equal(t, p.Warnings, got.Warnings)
}
