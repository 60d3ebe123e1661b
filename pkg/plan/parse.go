package plan

import (
	"encoding/json"
	"fmt"

	"github.com/lance6716/query-plan-comparer/pkg/util"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// MalformedPlanError reports an unparseable or structurally invalid raw plan
// document, naming the offending field path.
type MalformedPlanError struct {
	Label  string
	Path   string
	Reason string
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed plan document %q at %s: %s", e.Label, e.Path, e.Reason)
}

// costEpsilon absorbs float rounding when checking cost monotonicity.
const costEpsilon = 1e-6

// rawNode mirrors one node of the raw document. Pointers distinguish absent
// required fields from zero values.
type rawNode struct {
	Operator       *string           `json:"operator"`
	Relation       string            `json:"relation"`
	EstimatedCost  *float64          `json:"estimatedCost"`
	EstimatedRows  *int64            `json:"estimatedRows"`
	EstimatedWidth *int              `json:"estimatedWidth"`
	ActualCost     *float64          `json:"actualCost"`
	ActualRows     *int64            `json:"actualRows"`
	Attributes     map[string]string `json:"attributes"`
	Children       []*rawNode        `json:"children"`
	Collapsed      []*rawNode        `json:"collapsed"`
}

type rawDocument struct {
	Label         string   `json:"label"`
	Query         string   `json:"query"`
	PlanningTime  *float64 `json:"planningTime"`
	ExecutionTime *float64 `json:"executionTime"`
	Plan          *rawNode `json:"plan"`
}

// ParseDocument converts one raw plan document into a canonical Plan. It is a
// pure transformation: no I/O, no retries. Cost-monotonicity violations are
// attached to the Plan as warnings and logged, they do not fail the parse.
// The label overrides the document's own label when non-empty.
func ParseDocument(label string, content []byte) (*Plan, error) {
	doc := rawDocument{}
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, errors.Trace(&MalformedPlanError{
			Label:  label,
			Path:   "(document)",
			Reason: err.Error(),
		})
	}
	if label == "" {
		label = doc.Label
	}
	if doc.Plan == nil {
		return nil, errors.Trace(&MalformedPlanError{
			Label:  label,
			Path:   "plan",
			Reason: "field is missing",
		})
	}

	root, err := convertNode(label, "plan", doc.Plan)
	if err != nil {
		return nil, errors.Trace(err)
	}

	ret := &Plan{
		Label:         label,
		Query:         doc.Query,
		Root:          root,
		PlanningTime:  doc.PlanningTime,
		ExecutionTime: doc.ExecutionTime,
	}
	checkMonotonicity(root, "plan", &ret.Warnings)
	for _, w := range ret.Warnings {
		util.Logger.Warn("cost monotonicity violated",
			zap.String("label", label),
			zap.String("node", w.Path),
			zap.Float64("nodeCost", w.NodeCost),
			zap.Float64("childrenCost", w.ChildrenCost))
	}
	return ret, nil
}

func convertNode(label, path string, raw *rawNode) (*PlanNode, error) {
	if raw == nil {
		return nil, &MalformedPlanError{Label: label, Path: path, Reason: "node is null"}
	}
	if raw.Operator == nil || *raw.Operator == "" {
		return nil, &MalformedPlanError{Label: label, Path: path + ".operator", Reason: "field is missing"}
	}
	if raw.EstimatedCost == nil {
		return nil, &MalformedPlanError{Label: label, Path: path + ".estimatedCost", Reason: "field is missing"}
	}
	if *raw.EstimatedCost < 0 {
		return nil, &MalformedPlanError{Label: label, Path: path + ".estimatedCost", Reason: "value is negative"}
	}
	if raw.EstimatedRows == nil {
		return nil, &MalformedPlanError{Label: label, Path: path + ".estimatedRows", Reason: "field is missing"}
	}
	if *raw.EstimatedRows < 0 {
		return nil, &MalformedPlanError{Label: label, Path: path + ".estimatedRows", Reason: "value is negative"}
	}
	if raw.ActualCost != nil && *raw.ActualCost < 0 {
		return nil, &MalformedPlanError{Label: label, Path: path + ".actualCost", Reason: "value is negative"}
	}
	if raw.ActualRows != nil && *raw.ActualRows < 0 {
		return nil, &MalformedPlanError{Label: label, Path: path + ".actualRows", Reason: "value is negative"}
	}

	operator, recognized := CanonicalOperator(*raw.Operator)
	ret := &PlanNode{
		Operator:       operator,
		Recognized:     recognized,
		Relation:       raw.Relation,
		EstimatedCost:  *raw.EstimatedCost,
		EstimatedRows:  *raw.EstimatedRows,
		EstimatedWidth: raw.EstimatedWidth,
		ActualCost:     raw.ActualCost,
		ActualRows:     raw.ActualRows,
		Attributes:     raw.Attributes,
	}
	for i, child := range raw.Children {
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		converted, err := convertNode(label, childPath, child)
		if err != nil {
			return nil, err
		}
		ret.Children = append(ret.Children, converted)
	}
	for i, collapsed := range raw.Collapsed {
		collapsedPath := fmt.Sprintf("%s.collapsed[%d]", path, i)
		converted, err := convertNode(label, collapsedPath, collapsed)
		if err != nil {
			return nil, err
		}
		ret.Collapsed = append(ret.Collapsed, converted)
	}
	return ret, nil
}

func checkMonotonicity(n *PlanNode, path string, warnings *[]CostMonotonicityWarning) {
	childrenCost := 0.0
	for _, child := range n.Children {
		childrenCost += child.EstimatedCost
	}
	if childrenCost-n.EstimatedCost > costEpsilon {
		*warnings = append(*warnings, CostMonotonicityWarning{
			Path:         path,
			NodeCost:     n.EstimatedCost,
			ChildrenCost: childrenCost,
		})
	}
	for i, child := range n.Children {
		checkMonotonicity(child, fmt.Sprintf("%s.children[%d]", path, i), warnings)
	}
}
