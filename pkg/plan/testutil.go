package plan

import (
	"strconv"
	"strings"
)

// NewNode4Test creates a PlanNode for tests. The input string should be in
// the format of
//   - {operator}
//   - {operator}|{relation}
//   - {operator}|{relation}|{estimatedCost}
//   - {operator}|{relation}|{estimatedCost}|{estimatedRows}
func NewNode4Test(input string, children ...*PlanNode) *PlanNode {
	parts := strings.Split(input, "|")
	operator, recognized := CanonicalOperator(parts[0])
	ret := &PlanNode{
		Operator:   operator,
		Recognized: recognized,
		Children:   children,
	}
	if len(parts) > 1 {
		ret.Relation = parts[1]
	}
	if len(parts) > 2 {
		cost, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			panic(err)
		}
		ret.EstimatedCost = cost
	}
	if len(parts) > 3 {
		rows, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			panic(err)
		}
		ret.EstimatedRows = rows
	}
	return ret
}
