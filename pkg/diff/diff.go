// Package diff turns a node correspondence into the deltas and scores the
// presentation layer renders.
package diff

import (
	"math"
	"slices"

	"github.com/lance6716/query-plan-comparer/pkg/align"
	"github.com/lance6716/query-plan-comparer/pkg/plan"
)

// PairDelta describes how one matched node pair changed from plan A to
// plan B.
type PairDelta struct {
	A *plan.PlanNode
	B *plan.PlanNode

	OperatorChanged bool
	RelationChanged bool
	// attribute keys whose values differ between the two sides, sorted
	ChangedAttributes []string

	// signed, B minus A
	CostDelta float64
	RowsDelta int64

	// |actualRows - estimatedRows| / max(1, actualRows), using the B side
	// when it was executed, else the A side; nil when neither side has
	// actual rows
	EstimateAccuracy *float64

	Similarity float64
}

// Result is the comparison of one plan pair.
type Result struct {
	LabelA string
	LabelB string

	Correspondence *align.Correspondence
	Pairs          []PairDelta
	// roots of subtrees present on only one side; the nodes beneath them are
	// in the Correspondence but not repeated here
	InsertedRoots []*plan.PlanNode
	DeletedRoots  []*plan.PlanNode

	// 1 - alignmentCost/maxCost, clamped to [0,1]
	Similarity float64
}

// Summarize walks a correspondence and computes the per-pair and whole-plan
// deltas. It only reads the correspondence.
func Summarize(a, b *plan.Plan, corr *align.Correspondence) *Result {
	ret := &Result{
		LabelA:         a.Label,
		LabelB:         b.Label,
		Correspondence: corr,
		Similarity:     similarityScore(corr),
	}

	for _, m := range corr.Matches {
		ret.Pairs = append(ret.Pairs, pairDelta(m))
	}
	ret.InsertedRoots = subtreeRoots(corr.Inserted)
	ret.DeletedRoots = subtreeRoots(corr.Deleted)
	return ret
}

func pairDelta(m align.Match) PairDelta {
	ret := PairDelta{
		A:               m.A,
		B:               m.B,
		OperatorChanged: m.A.Operator != m.B.Operator,
		RelationChanged: m.A.Relation != m.B.Relation,
		CostDelta:       m.B.EstimatedCost - m.A.EstimatedCost,
		RowsDelta:       m.B.EstimatedRows - m.A.EstimatedRows,
		Similarity:      m.Similarity,
	}

	keys := make(map[string]struct{}, len(m.A.Attributes)+len(m.B.Attributes))
	for k := range m.A.Attributes {
		keys[k] = struct{}{}
	}
	for k := range m.B.Attributes {
		keys[k] = struct{}{}
	}
	for k := range keys {
		if m.A.Attributes[k] != m.B.Attributes[k] {
			ret.ChangedAttributes = append(ret.ChangedAttributes, k)
		}
	}
	slices.Sort(ret.ChangedAttributes)

	if acc, ok := estimateAccuracy(m.B); ok {
		ret.EstimateAccuracy = &acc
	} else if acc, ok = estimateAccuracy(m.A); ok {
		ret.EstimateAccuracy = &acc
	}
	return ret
}

func estimateAccuracy(n *plan.PlanNode) (float64, bool) {
	if n.ActualRows == nil {
		return 0, false
	}
	actual := *n.ActualRows
	return math.Abs(float64(actual-n.EstimatedRows)) / math.Max(1, float64(actual)), true
}

func similarityScore(corr *align.Correspondence) float64 {
	if corr.MaxCost <= 0 {
		return 1
	}
	score := 1 - corr.Cost/corr.MaxCost
	return math.Min(1, math.Max(0, score))
}

// subtreeRoots keeps only the nodes whose parent is not itself removed, so a
// dropped subtree is reported once.
func subtreeRoots(removed []*plan.PlanNode) []*plan.PlanNode {
	if len(removed) == 0 {
		return nil
	}
	inSet := make(map[*plan.PlanNode]struct{}, len(removed))
	for _, n := range removed {
		inSet[n] = struct{}{}
	}
	childOfRemoved := make(map[*plan.PlanNode]struct{}, len(removed))
	for _, n := range removed {
		for _, child := range n.Children {
			if _, ok := inSet[child]; ok {
				childOfRemoved[child] = struct{}{}
			}
		}
	}

	ret := make([]*plan.PlanNode, 0, len(removed))
	for _, n := range removed {
		if _, ok := childOfRemoved[n]; !ok {
			ret = append(ret, n)
		}
	}
	return ret
}
