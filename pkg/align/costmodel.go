// Package align matches the nodes of two normalized plan trees by computing
// a tree edit distance with operator-aware costs.
package align

import (
	"os"

	"github.com/lance6716/query-plan-comparer/pkg/plan"
	"github.com/pingcap/errors"
	"gopkg.in/yaml.v3"
)

// CostModel holds the alignment cost constants. They are a design choice, not
// a reverse-engineered fact, so they are tunable: load overrides from a YAML
// file with LoadCostModel.
//
// Substituting one node for another costs:
//   - 0 when operator and target relation match exactly
//   - RelationMismatch when operators match but the relation differs
//   - SameFamily when operators differ but belong to the same family
//     (scan for scan, join for join, ...)
//   - CrossFamily otherwise; this is the maximal substitution cost and the
//     unit the per-node similarity is measured against
//
// Deleting or inserting a subtree costs DeleteBase per node, weighted up by
// the node's share of its plan's total estimated cost, so dropping a cheap
// auxiliary node costs less than dropping an expensive join.
type CostModel struct {
	RelationMismatch float64 `yaml:"relationMismatch"`
	SameFamily       float64 `yaml:"sameFamily"`
	CrossFamily      float64 `yaml:"crossFamily"`
	DeleteBase       float64 `yaml:"deleteBase"`
}

// DefaultCostModel returns the built-in constants.
func DefaultCostModel() CostModel {
	return CostModel{
		RelationMismatch: 0.2,
		SameFamily:       0.5,
		CrossFamily:      1.0,
		DeleteBase:       0.3,
	}
}

// LoadCostModel reads cost constants from a YAML file. Omitted keys keep
// their default values.
func LoadCostModel(path string) (CostModel, error) {
	ret := DefaultCostModel()
	content, err := os.ReadFile(path)
	if err != nil {
		return ret, errors.Annotatef(err, "read cost model file %s", path)
	}
	if err = yaml.Unmarshal(content, &ret); err != nil {
		return ret, errors.Annotatef(err, "parse cost model file %s", path)
	}
	return ret, errors.Trace(ret.Validate())
}

// Validate checks that the constants are ordered the way the algorithm
// assumes.
func (m CostModel) Validate() error {
	if m.RelationMismatch <= 0 || m.SameFamily <= 0 || m.CrossFamily <= 0 || m.DeleteBase <= 0 {
		return errors.Errorf("cost model constants must be positive: %+v", m)
	}
	if m.RelationMismatch > m.SameFamily || m.SameFamily > m.CrossFamily {
		return errors.Errorf(
			"cost model must satisfy relationMismatch <= sameFamily <= crossFamily: %+v", m)
	}
	return nil
}

// substitution returns the cost of matching a against b.
func (m CostModel) substitution(a, b *plan.PlanNode) float64 {
	if a.Operator == b.Operator {
		if a.Relation == b.Relation {
			return 0
		}
		return m.RelationMismatch
	}
	if plan.OperatorFamily(a.Operator) == plan.OperatorFamily(b.Operator) {
		return m.SameFamily
	}
	return m.CrossFamily
}

// similarity converts a substitution cost into the per-node [0,1] score.
func (m CostModel) similarity(a, b *plan.PlanNode) float64 {
	return 1 - m.substitution(a, b)/m.CrossFamily
}

// nodeRemoval is the cost of inserting or deleting a single node. planTotal
// is the estimated cost of the node's whole plan, used to weight expensive
// operators.
func (m CostModel) nodeRemoval(n *plan.PlanNode, planTotal float64) float64 {
	share := 0.0
	if planTotal > 0 {
		share = n.SelfCost() / planTotal
	}
	return m.DeleteBase * (1 + share)
}
