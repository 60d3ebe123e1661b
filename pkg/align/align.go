package align

import (
	"fmt"

	"github.com/lance6716/query-plan-comparer/pkg/plan"
	"github.com/pingcap/errors"
)

// IncomparablePlansError is returned when the caller tries to align plans
// that do not belong to the same query. This is a usage error, not a crash.
type IncomparablePlansError struct {
	LabelA string
	LabelB string
}

func (e *IncomparablePlansError) Error() string {
	return fmt.Sprintf(
		"plans %q and %q were produced for different queries and cannot be compared",
		e.LabelA, e.LabelB,
	)
}

// Match pairs a node of plan A with a node of plan B. Similarity is derived
// from the substitution cost alone: 1.0 for an exact operator+relation
// match, 0.0 for a cross-family substitution.
type Match struct {
	A          *plan.PlanNode
	B          *plan.PlanNode
	Similarity float64
}

// Correspondence is the alignment of two plan trees: matched node pairs plus
// every node present on only one side. Cost is the exact edit cost of this
// alignment and MaxCost the cost of the degenerate alignment that deletes
// all of A and inserts all of B, which normalizes Cost into a size-independent
// similarity score.
type Correspondence struct {
	Matches  []Match
	Inserted []*plan.PlanNode
	Deleted  []*plan.PlanNode
	Cost     float64
	MaxCost  float64
}

// Aligner computes Correspondences under one cost model. It is stateless
// across calls and safe for concurrent use.
type Aligner struct {
	model CostModel
}

func NewAligner(model CostModel) *Aligner {
	return &Aligner{model: model}
}

// Align matches the nodes of two normalized plans bottom-up, minimizing the
// total edit cost. For every node pair it considers substituting one for the
// other (recursing into an optimal matching of their children), deleting the
// A node, or inserting the B node. Children of order-sensitive operators are
// matched by sequence alignment, children of commutative operators by exact
// minimum-cost bipartite matching.
//
// Ties are broken deterministically: matches keeping relation names aligned
// win, then matches covering the larger subtree. Re-running on identical
// input yields an identical Correspondence.
func (al *Aligner) Align(a, b *plan.Plan) (*Correspondence, error) {
	if a.Query != b.Query {
		return nil, errors.Trace(&IncomparablePlansError{LabelA: a.Label, LabelB: b.Label})
	}

	s := newState(al.model, a, b)
	s.match(a.Root, b.Root)

	ret := &Correspondence{}
	s.reconstruct(a.Root, b.Root, ret)
	// decisions above used epsilon-adjusted costs for tie-breaking; report
	// the exact cost of the chosen alignment instead
	ret.Cost = s.exactCost(ret)
	ret.MaxCost = s.removal[a.Root] + s.removal[b.Root]
	return ret, nil
}

// tie-breaking bonuses, small enough to never flip a genuine cost difference
const (
	relationTieEps = 1e-6
	sizeTieEps     = 1e-9
)

type matchKind int8

const (
	kindSubstitute matchKind = iota
	kindDeleteA
	kindInsertB
)

type pairKey struct {
	a *plan.PlanNode
	b *plan.PlanNode
}

type pairResult struct {
	cost float64
	kind matchKind
	// child index descended into, for kindDeleteA / kindInsertB
	k int
	// matched (aChild, bChild) index pairs, for kindSubstitute
	pairs [][2]int
}

type state struct {
	model  CostModel
	totalA float64
	totalB float64
	memo   map[pairKey]pairResult
	size   map[*plan.PlanNode]int
	// removal[n] is the cost of deleting (or inserting) the whole subtree
	// rooted at n, relative to its own plan's total cost
	removal map[*plan.PlanNode]float64
	// total[n] is the plan total the node belongs to, for exact per-node
	// removal costs during reconstruction
	total map[*plan.PlanNode]float64
}

func newState(model CostModel, a, b *plan.Plan) *state {
	s := &state{
		model:   model,
		totalA:  a.Root.EstimatedCost,
		totalB:  b.Root.EstimatedCost,
		memo:    make(map[pairKey]pairResult),
		size:    make(map[*plan.PlanNode]int),
		removal: make(map[*plan.PlanNode]float64),
		total:   make(map[*plan.PlanNode]float64),
	}
	s.index(a.Root, s.totalA)
	s.index(b.Root, s.totalB)
	return s
}

func (s *state) index(n *plan.PlanNode, planTotal float64) (size int, removal float64) {
	size = 1
	removal = s.model.nodeRemoval(n, planTotal)
	for _, child := range n.Children {
		childSize, childRemoval := s.index(child, planTotal)
		size += childSize
		removal += childRemoval
	}
	s.size[n] = size
	s.removal[n] = removal
	s.total[n] = planTotal
	return size, removal
}

// adjustedSub is the substitution cost used while choosing an alignment. The
// epsilon bonuses implement the tie-break rules without a second comparison
// pass.
func (s *state) adjustedSub(a, b *plan.PlanNode) float64 {
	cost := s.model.substitution(a, b)
	if a.Relation != "" && a.Relation == b.Relation {
		cost -= relationTieEps
	}
	return cost - sizeTieEps*float64(min(s.size[a], s.size[b]))
}

// match computes the minimal adjusted cost of aligning the subtrees rooted
// at a and b. Results are memoized per node pair, so the overall work is
// bounded by the number of reachable pairs times the child-set matching
// cost, not by whole-tree-sized recursion.
func (s *state) match(a, b *plan.PlanNode) pairResult {
	key := pairKey{a: a, b: b}
	if r, ok := s.memo[key]; ok {
		return r
	}

	childCost, pairs := s.matchChildren(a, b)
	best := pairResult{
		cost:  s.adjustedSub(a, b) + childCost,
		kind:  kindSubstitute,
		pairs: pairs,
	}

	// deleting a: remove a's own node, align one of its children against b
	// and delete the remaining subtrees
	if len(a.Children) > 0 {
		base := s.model.nodeRemoval(a, s.totalA)
		for i := 1; i < len(a.Children); i++ {
			base += s.removal[a.Children[i]]
		}
		// base now holds the cost of deleting everything except children[0];
		// shift the kept child as we scan
		for k, child := range a.Children {
			cost := base + s.match(child, b).cost
			if cost < best.cost {
				best = pairResult{cost: cost, kind: kindDeleteA, k: k}
			}
			if k+1 < len(a.Children) {
				base += s.removal[child] - s.removal[a.Children[k+1]]
			}
		}
	}

	// inserting b: the mirror case
	if len(b.Children) > 0 {
		base := s.model.nodeRemoval(b, s.totalB)
		for j := 1; j < len(b.Children); j++ {
			base += s.removal[b.Children[j]]
		}
		for k, child := range b.Children {
			cost := base + s.match(a, child).cost
			if cost < best.cost {
				best = pairResult{cost: cost, kind: kindInsertB, k: k}
			}
			if k+1 < len(b.Children) {
				base += s.removal[child] - s.removal[b.Children[k+1]]
			}
		}
	}

	s.memo[key] = best
	return best
}

// matchChildren returns the minimal cost of aligning the children sets of a
// and b plus the chosen (aChild, bChild) pairs. Unmatched children on either
// side are charged their subtree removal cost.
func (s *state) matchChildren(a, b *plan.PlanNode) (float64, [][2]int) {
	m, n := len(a.Children), len(b.Children)
	switch {
	case m == 0 && n == 0:
		return 0, nil
	case m == 0:
		cost := 0.0
		for _, child := range b.Children {
			cost += s.removal[child]
		}
		return cost, nil
	case n == 0:
		cost := 0.0
		for _, child := range a.Children {
			cost += s.removal[child]
		}
		return cost, nil
	}

	if plan.Commutative(a.Operator) && plan.Commutative(b.Operator) {
		return s.matchUnordered(a.Children, b.Children)
	}
	return s.matchOrdered(a.Children, b.Children)
}

// matchOrdered is sequence alignment (edit distance) over the two children
// slices, preserving positional semantics like outer/inner join sides.
func (s *state) matchOrdered(as, bs []*plan.PlanNode) (float64, [][2]int) {
	m, n := len(as), len(bs)
	dp := make([][]float64, m+1)
	choice := make([][]matchKind, m+1)
	for i := range dp {
		dp[i] = make([]float64, n+1)
		choice[i] = make([]matchKind, n+1)
	}
	for i := 1; i <= m; i++ {
		dp[i][0] = dp[i-1][0] + s.removal[as[i-1]]
		choice[i][0] = kindDeleteA
	}
	for j := 1; j <= n; j++ {
		dp[0][j] = dp[0][j-1] + s.removal[bs[j-1]]
		choice[0][j] = kindInsertB
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			// fixed preference on exact ties: substitute, delete, insert
			cost := dp[i-1][j-1] + s.match(as[i-1], bs[j-1]).cost
			kind := kindSubstitute
			if del := dp[i-1][j] + s.removal[as[i-1]]; del < cost {
				cost = del
				kind = kindDeleteA
			}
			if ins := dp[i][j-1] + s.removal[bs[j-1]]; ins < cost {
				cost = ins
				kind = kindInsertB
			}
			dp[i][j] = cost
			choice[i][j] = kind
		}
	}

	pairs := make([][2]int, 0, min(m, n))
	for i, j := m, n; i > 0 || j > 0; {
		switch choice[i][j] {
		case kindSubstitute:
			pairs = append(pairs, [2]int{i - 1, j - 1})
			i--
			j--
		case kindDeleteA:
			i--
		case kindInsertB:
			j--
		}
	}
	// reverse into left-to-right order
	for l, r := 0, len(pairs)-1; l < r; l, r = l+1, r-1 {
		pairs[l], pairs[r] = pairs[r], pairs[l]
	}
	return dp[m][n], pairs
}

// matchUnordered finds the minimum-cost bipartite matching between the two
// children sets. The cost matrix is padded square with removal costs so that
// leaving a child unmatched is an explicit option.
func (s *state) matchUnordered(as, bs []*plan.PlanNode) (float64, [][2]int) {
	m, n := len(as), len(bs)
	size := m + n
	cost := make([][]float64, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		for j := range cost[i] {
			switch {
			case i < m && j < n:
				cost[i][j] = s.match(as[i], bs[j]).cost
			case i < m:
				cost[i][j] = s.removal[as[i]]
			case j < n:
				cost[i][j] = s.removal[bs[j]]
			}
		}
	}

	assignment := solveAssignment(cost)
	total := 0.0
	pairs := make([][2]int, 0, min(m, n))
	for i, j := range assignment {
		total += cost[i][j]
		if i < m && j < n {
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return total, pairs
}

// reconstruct replays the memoized decisions, filling the Correspondence in
// a deterministic pre-order.
func (s *state) reconstruct(a, b *plan.PlanNode, corr *Correspondence) {
	r := s.match(a, b)
	switch r.kind {
	case kindSubstitute:
		corr.Matches = append(corr.Matches, Match{
			A:          a,
			B:          b,
			Similarity: s.model.similarity(a, b),
		})
		matchedA := make([]bool, len(a.Children))
		matchedB := make([]bool, len(b.Children))
		for _, p := range r.pairs {
			matchedA[p[0]] = true
			matchedB[p[1]] = true
		}
		for _, p := range r.pairs {
			s.reconstruct(a.Children[p[0]], b.Children[p[1]], corr)
		}
		for i, child := range a.Children {
			if !matchedA[i] {
				markRemoved(child, &corr.Deleted)
			}
		}
		for j, child := range b.Children {
			if !matchedB[j] {
				markRemoved(child, &corr.Inserted)
			}
		}
	case kindDeleteA:
		corr.Deleted = append(corr.Deleted, a)
		for i, child := range a.Children {
			if i != r.k {
				markRemoved(child, &corr.Deleted)
			}
		}
		s.reconstruct(a.Children[r.k], b, corr)
	case kindInsertB:
		corr.Inserted = append(corr.Inserted, b)
		for j, child := range b.Children {
			if j != r.k {
				markRemoved(child, &corr.Inserted)
			}
		}
		s.reconstruct(a, b.Children[r.k], corr)
	}
}

func markRemoved(n *plan.PlanNode, into *[]*plan.PlanNode) {
	*into = append(*into, n)
	for _, child := range n.Children {
		markRemoved(child, into)
	}
}

// exactCost recomputes the alignment cost of the chosen correspondence
// without the tie-break epsilons, so aligning a plan with itself costs
// exactly zero.
func (s *state) exactCost(corr *Correspondence) float64 {
	cost := 0.0
	for _, m := range corr.Matches {
		cost += s.model.substitution(m.A, m.B)
	}
	for _, n := range corr.Deleted {
		cost += s.model.nodeRemoval(n, s.total[n])
	}
	for _, n := range corr.Inserted {
		cost += s.model.nodeRemoval(n, s.total[n])
	}
	return cost
}
