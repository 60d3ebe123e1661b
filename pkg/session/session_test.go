package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lance6716/query-plan-comparer/pkg/plan"
	"github.com/stretchr/testify/require"
)

const query = "SELECT * FROM orders WHERE amount > 100"

func document(t *testing.T, label, queryText string, root *plan.PlanNode) []byte {
	bs, err := json.Marshal(&plan.Plan{Label: label, Query: queryText, Root: root})
	require.NoError(t, err)
	return bs
}

func newSession(t *testing.T, opts ...Option) *Session {
	s := New(query, opts...)
	require.NoError(t, s.AddDocument("baseline", document(t, "baseline", query,
		plan.NewNode4Test("SeqScan|orders|100|1000"))))
	require.NoError(t, s.AddDocument("with-index", document(t, "with-index", query,
		plan.NewNode4Test("IndexScan|orders|40|1000"))))
	require.NoError(t, s.AddDocument("with-sort", document(t, "with-sort", query,
		plan.NewNode4Test("Sort||120|1000",
			plan.NewNode4Test("SeqScan|orders|100|1000")))))
	return s
}

func TestCompareAllPairs(t *testing.T) {
	s := newSession(t)
	results, err := s.Compare(context.Background())
	require.NoError(t, err)
	// 3 plans -> 3 unordered pairs
	require.Len(t, results, 3)
	require.Equal(t, "baseline", results[0].LabelA)
	require.Equal(t, "with-index", results[0].LabelB)
	require.Equal(t, "baseline", results[1].LabelA)
	require.Equal(t, "with-sort", results[1].LabelB)
	require.Equal(t, "with-index", results[2].LabelA)
	require.Equal(t, "with-sort", results[2].LabelB)
	for _, r := range results {
		require.GreaterOrEqual(t, r.Similarity, 0.0)
		require.LessOrEqual(t, r.Similarity, 1.0)
	}
}

func TestCompareBaselineVsRest(t *testing.T) {
	s := newSession(t, WithPairing(BaselineVsRest))
	results, err := s.Compare(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "baseline", results[0].LabelA)
	require.Equal(t, "baseline", results[1].LabelA)
}

func TestCompareSinglePlan(t *testing.T) {
	s := New(query)
	require.NoError(t, s.AddDocument("only", document(t, "only", query,
		plan.NewNode4Test("SeqScan|orders|100|1000"))))
	results, err := s.Compare(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestCompareEmptySession(t *testing.T) {
	s := New(query)
	_, err := s.Compare(context.Background())
	require.Error(t, err)
}

func TestQueryMismatch(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.AddDocument("other-query", document(t, "other-query",
		"SELECT 1", plan.NewNode4Test("Result||0.01|1"))))

	_, err := s.Compare(context.Background())
	require.Error(t, err)
	mismatch := &QueryMismatchError{}
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, "other-query", mismatch.Label)
	require.Equal(t, "SELECT 1", mismatch.DocumentQuery)
}

func TestDocumentWithoutQueryUsesSessionQuery(t *testing.T) {
	s := New(query)
	require.NoError(t, s.AddDocument("a", document(t, "a", "",
		plan.NewNode4Test("SeqScan|orders|100|1000"))))
	require.NoError(t, s.AddDocument("b", document(t, "b", query,
		plan.NewNode4Test("SeqScan|orders|150|1000"))))
	results, err := s.Compare(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 1.0, results[0].Similarity)
}

func TestDuplicateLabelRejected(t *testing.T) {
	s := newSession(t)
	err := s.AddDocument("baseline", []byte("{}"))
	require.ErrorContains(t, err, "duplicate")
	err = s.AddDocument("", []byte("{}"))
	require.Error(t, err)
}

func TestMalformedDocumentSurfacesLabel(t *testing.T) {
	s := New(query)
	require.NoError(t, s.AddDocument("broken", []byte(`{"plan": {"operator": "Seq Scan"}}`)))
	_, err := s.Compare(context.Background())
	require.Error(t, err)
	malformed := &plan.MalformedPlanError{}
	require.True(t, errors.As(err, &malformed))
	require.Equal(t, "broken", malformed.Label)
}

func TestCacheReusedAcrossPairings(t *testing.T) {
	s := newSession(t)
	_, err := s.Compare(context.Background())
	require.NoError(t, err)
	first, err := s.Plan("baseline")
	require.NoError(t, err)

	s.SetPairing(BaselineVsRest)
	_, err = s.Compare(context.Background())
	require.NoError(t, err)
	second, err := s.Plan("baseline")
	require.NoError(t, err)
	// same cached parse, not a re-parse
	require.Same(t, first, second)
}

func TestCompareCancelled(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Compare(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDistinctPlans(t *testing.T) {
	s := New(query)
	scan := func() *plan.PlanNode { return plan.NewNode4Test("SeqScan|orders|100|1000") }
	require.NoError(t, s.AddDocument("a", document(t, "a", query, scan())))
	// same shape, different cost estimates: still the same plan
	require.NoError(t, s.AddDocument("b", document(t, "b", query,
		plan.NewNode4Test("SeqScan|orders|140|900"))))
	require.NoError(t, s.AddDocument("c", document(t, "c", query,
		plan.NewNode4Test("IndexScan|orders|40|1000"))))
	require.NoError(t, s.AddDocument("d", document(t, "d", query, scan())))

	groups, err := s.DistinctPlans()
	require.NoError(t, err)
	require.Equal(t, [][]string{{"a", "b", "d"}, {"c"}}, groups)
}

func TestUnknownLabel(t *testing.T) {
	s := newSession(t)
	_, err := s.Plan("nope")
	require.Error(t, err)
}
