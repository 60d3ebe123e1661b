package report

import (
	"fmt"
	"html/template"
	"os"
	"strconv"
	"strings"

	"github.com/lance6716/query-plan-comparer/pkg/diff"
	"github.com/lance6716/query-plan-comparer/pkg/plan"
)

var t = template.Must(template.New("report").Parse(tpl))

type Report struct {
	Query         string
	TaskInfoItems [][2]string // [key, value]
	Plans         []PlanView
	Groups        []Group
	Matrix        TableWithColRowHeader
	Details       []Details
}

type PlanView struct {
	Label  string
	Labels [][2]string
	Text   string
}

type Group struct {
	Labels string // comma-joined labels of structurally identical plans
}

type Table struct {
	Header []string
	Data   [][]string
}

type TableWithColRowHeader struct {
	ColHeader []string   // assuming it's N+1 values for (RowHeader, N columns)
	RowHeader []string   // assuming it's M values for M rows
	Data      [][]string // it should be MxN values
}

type Details struct {
	Header   string
	Labels   [][2]string
	Changes  Table
	Inserted []string
	Deleted  []string
}

// Build assembles a Report from the plans and diff results of one comparison
// run. plans follow the session's label order; groups come from the
// session's distinct plan grouping.
func Build(
	query string,
	plans []*plan.Plan,
	groups [][]string,
	results []*diff.Result,
) *Report {
	ret := &Report{
		Query: query,
		TaskInfoItems: [][2]string{
			{"Plans", strconv.Itoa(len(plans))},
			{"Distinct plans", strconv.Itoa(len(groups))},
			{"Compared pairs", strconv.Itoa(len(results))},
		},
	}

	for _, p := range plans {
		ret.Plans = append(ret.Plans, planView(p))
	}
	for _, g := range groups {
		ret.Groups = append(ret.Groups, Group{Labels: strings.Join(g, ", ")})
	}
	ret.Matrix = similarityMatrix(plans, results)
	for _, r := range results {
		ret.Details = append(ret.Details, details(r))
	}
	return ret
}

func planView(p *plan.Plan) PlanView {
	ret := PlanView{
		Label: p.Label,
		Text:  plan.Render(p.Root),
	}
	ret.Labels = append(ret.Labels,
		[2]string{"Estimated cost", fmtFloat(p.Root.EstimatedCost)})
	if p.PlanningTime != nil {
		ret.Labels = append(ret.Labels,
			[2]string{"Planning time (ms)", fmtFloat(*p.PlanningTime)})
	}
	if p.ExecutionTime != nil {
		ret.Labels = append(ret.Labels,
			[2]string{"Execution time (ms)", fmtFloat(*p.ExecutionTime)})
	}
	for _, w := range p.Warnings {
		ret.Labels = append(ret.Labels, [2]string{"Warning", w.String()})
	}
	return ret
}

func similarityMatrix(plans []*plan.Plan, results []*diff.Result) TableWithColRowHeader {
	labels := make([]string, 0, len(plans))
	for _, p := range plans {
		labels = append(labels, p.Label)
	}

	scores := make(map[[2]string]float64, len(results))
	for _, r := range results {
		scores[[2]string{r.LabelA, r.LabelB}] = r.Similarity
		scores[[2]string{r.LabelB, r.LabelA}] = r.Similarity
	}

	ret := TableWithColRowHeader{
		ColHeader: append([]string{""}, labels...),
		RowHeader: labels,
	}
	for _, rowLabel := range labels {
		row := make([]string, 0, len(labels))
		for _, colLabel := range labels {
			switch {
			case rowLabel == colLabel:
				row = append(row, "1.000")
			default:
				if score, ok := scores[[2]string{rowLabel, colLabel}]; ok {
					row = append(row, fmt.Sprintf("%.3f", score))
				} else {
					row = append(row, "-")
				}
			}
		}
		ret.Data = append(ret.Data, row)
	}
	return ret
}

func details(r *diff.Result) Details {
	ret := Details{
		Header: fmt.Sprintf("%s vs %s", r.LabelA, r.LabelB),
		Labels: [][2]string{
			{"Similarity", fmt.Sprintf("%.3f", r.Similarity)},
			{"Alignment cost", fmtFloat(r.Correspondence.Cost)},
		},
		Changes: Table{
			Header: []string{
				"Operator", "Changed to", "Relation change",
				"Cost delta", "Rows delta", "Changed attributes",
			},
		},
	}

	for _, pair := range r.Pairs {
		if !pair.OperatorChanged && !pair.RelationChanged &&
			len(pair.ChangedAttributes) == 0 && pair.CostDelta == 0 {
			continue
		}
		operatorTo := pair.B.Operator
		if !pair.OperatorChanged {
			operatorTo = "-"
		}
		relationChange := "-"
		if pair.RelationChanged {
			relationChange = fmt.Sprintf("%s -> %s", pair.A.Relation, pair.B.Relation)
		}
		ret.Changes.Data = append(ret.Changes.Data, []string{
			pair.A.Operator,
			operatorTo,
			relationChange,
			fmtFloat(pair.CostDelta),
			strconv.FormatInt(pair.RowsDelta, 10),
			strings.Join(pair.ChangedAttributes, ", "),
		})
	}

	for _, n := range r.InsertedRoots {
		ret.Inserted = append(ret.Inserted, nodeBrief(n))
	}
	for _, n := range r.DeletedRoots {
		ret.Deleted = append(ret.Deleted, nodeBrief(n))
	}
	return ret
}

func nodeBrief(n *plan.PlanNode) string {
	if n.Relation != "" {
		return fmt.Sprintf("%s on %s (cost %s, %d nodes)",
			n.Operator, n.Relation, fmtFloat(n.EstimatedCost), n.Size())
	}
	return fmt.Sprintf("%s (cost %s, %d nodes)",
		n.Operator, fmtFloat(n.EstimatedCost), n.Size())
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func Render(r *Report, outFilename string) error {
	file, err := os.Create(outFilename)
	if err != nil {
		return err
	}
	defer file.Close()

	return render(r, file)
}

func render(r *Report, outFile *os.File) error {
	return t.Execute(outFile, r)
}
