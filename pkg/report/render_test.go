package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lance6716/query-plan-comparer/pkg/align"
	"github.com/lance6716/query-plan-comparer/pkg/diff"
	"github.com/lance6716/query-plan-comparer/pkg/plan"
	"github.com/stretchr/testify/require"
)

func TestBuildAndRender(t *testing.T) {
	a := &plan.Plan{
		Label: "base",
		Query: "SELECT * FROM t1 JOIN t2 ON t1.id = t2.id",
		Root: plan.NewNode4Test("HashJoin||120.75|1000",
			plan.NewNode4Test("SeqScan|t1|35.50|2550"),
			plan.NewNode4Test("SeqScan|t2|35.50|2550"),
		),
	}
	b := &plan.Plan{
		Label: "no-hashjoin",
		Query: a.Query,
		Root: plan.NewNode4Test("MergeJoin||150.25|1000",
			plan.NewNode4Test("SeqScan|t1|35.50|2550"),
			plan.NewNode4Test("SeqScan|t2|35.50|2550"),
		),
	}

	corr, err := align.NewAligner(align.DefaultCostModel()).Align(a, b)
	require.NoError(t, err)
	result := diff.Summarize(a, b, corr)

	r := Build(a.Query, []*plan.Plan{a, b},
		[][]string{{"base"}, {"no-hashjoin"}}, []*diff.Result{result})

	require.Len(t, r.Plans, 2)
	require.Len(t, r.Groups, 2)
	require.Equal(t, []string{"", "base", "no-hashjoin"}, r.Matrix.ColHeader)
	require.Equal(t, "1.000", r.Matrix.Data[0][0])
	require.Equal(t, r.Matrix.Data[0][1], r.Matrix.Data[1][0])
	require.Len(t, r.Details, 1)
	require.Equal(t, "base vs no-hashjoin", r.Details[0].Header)
	require.NotEmpty(t, r.Details[0].Changes.Data)

	outFilename := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, Render(r, outFilename))

	content, err := os.ReadFile(outFilename)
	require.NoError(t, err)
	require.Contains(t, string(content), "no-hashjoin")
	require.Contains(t, string(content), "HashJoin")
}
