package plan

import (
	"encoding/json"
	"fmt"
	"math"
)

// PlanNode is one operator of a canonical plan tree. The parser produces it
// from a raw document node and it is the unit the aligner works on. Optional
// runtime fields are pointers so that "absent" is distinguishable from zero.
type PlanNode struct {
	Operator   string `json:"operator"`
	Recognized bool   `json:"recognized"`
	Relation   string `json:"relation,omitempty"`

	EstimatedCost  float64  `json:"estimatedCost"`
	EstimatedRows  int64    `json:"estimatedRows"`
	EstimatedWidth *int     `json:"estimatedWidth,omitempty"`
	ActualCost     *float64 `json:"actualCost,omitempty"`
	ActualRows     *int64   `json:"actualRows,omitempty"`

	// Attributes carries operator-specific detail (join condition, sort keys,
	// filter predicate). The aligner treats it as opaque; the summarizer
	// reports per-key changes. Values are strings so a disk round-trip is
	// byte-exact.
	Attributes map[string]string `json:"attributes,omitempty"`

	Children []*PlanNode `json:"children,omitempty"`

	// Collapsed holds nodes the normalizer removed from above this node, so
	// display can restore the original chain.
	Collapsed []*PlanNode `json:"collapsed,omitempty"`
}

// Plan is one optimizer output for one query. Its JSON form is the raw
// document format, so writing a Plan to disk and parsing it back is lossless.
type Plan struct {
	Label         string                    `json:"label"`
	Query         string                    `json:"query"`
	Root          *PlanNode                 `json:"plan"`
	PlanningTime  *float64                  `json:"planningTime,omitempty"`
	ExecutionTime *float64                  `json:"executionTime,omitempty"`
	Warnings      []CostMonotonicityWarning `json:"warnings,omitempty"`
}

// CostMonotonicityWarning records a node whose estimated cost is smaller than
// the sum of its children's estimated costs. It is non-fatal.
type CostMonotonicityWarning struct {
	Path         string  `json:"path"`
	NodeCost     float64 `json:"nodeCost"`
	ChildrenCost float64 `json:"childrenCost"`
}

func (w CostMonotonicityWarning) String() string {
	return fmt.Sprintf(
		"node %s violates cost monotonicity: estimated cost %.2f < children total %.2f",
		w.Path, w.NodeCost, w.ChildrenCost,
	)
}

// IsLeaf reports whether the node has no children.
func (n *PlanNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Size returns the number of nodes in the subtree rooted at n.
func (n *PlanNode) Size() int {
	ret := 1
	for _, child := range n.Children {
		ret += child.Size()
	}
	return ret
}

// SelfCost returns the estimated cost of this operator alone, without the
// cost accumulated from its children, clamped at zero and rounded to 2
// decimals for display.
func (n *PlanNode) SelfCost() float64 {
	cost := n.EstimatedCost
	for _, child := range n.Children {
		cost -= child.EstimatedCost
	}
	return math.Round(math.Max(cost, 0)*100) / 100
}

func (n *PlanNode) Clone() *PlanNode {
	bs, _ := json.Marshal(n)
	ret := &PlanNode{}
	_ = json.Unmarshal(bs, ret)
	return ret
}

func (p *Plan) Clone() *Plan {
	bs, _ := json.Marshal(p)
	ret := &Plan{}
	_ = json.Unmarshal(bs, ret)
	return ret
}
