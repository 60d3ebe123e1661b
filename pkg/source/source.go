// Package source captures optimizer plans from a live PostgreSQL database
// and wraps them as raw plan documents. It is a collaborator of the
// comparison engine: the engine itself never talks to a database.
package source

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"regexp"
	"slices"
	"strings"

	// register the pgx database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lance6716/query-plan-comparer/pkg/util"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// Capture describes one labeled plan to fetch: the optimizer settings to
// apply for this capture only, and whether to execute the query to collect
// actual row counts.
type Capture struct {
	Label string
	// Settings are applied with SET LOCAL inside the capture transaction,
	// e.g. {"enable_hashjoin": "off"}.
	Settings map[string]string
	Analyze  bool
}

// Connect opens a PostgreSQL connection pool via the pgx driver.
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "open database for dsn %s", util.RedactDSN(dsn))
	}
	return db, nil
}

// Document is one labeled raw plan document ready for a comparison session.
type Document struct {
	Label   string
	Content []byte
}

// CaptureDocuments runs one EXPLAIN per capture and returns the raw
// documents.
func CaptureDocuments(
	ctx context.Context,
	db *sql.DB,
	query string,
	captures []Capture,
) ([]Document, error) {
	ret := make([]Document, 0, len(captures))
	for _, c := range captures {
		content, err := captureOne(ctx, db, query, c)
		if err != nil {
			return nil, errors.Annotatef(err, "capture plan %q", c.Label)
		}
		util.Logger.Info("captured plan",
			zap.String("label", c.Label),
			zap.Bool("analyze", c.Analyze),
			zap.Int("settings", len(c.Settings)))
		ret = append(ret, Document{Label: c.Label, Content: content})
	}
	return ret, nil
}

var settingNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// captureOne fetches one plan inside a transaction so SET LOCAL settings
// never leak into the pool. The transaction is always rolled back, which
// also discards side effects of EXPLAIN ANALYZE on DML queries.
func captureOne(ctx context.Context, db *sql.DB, query string, c Capture) ([]byte, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer tx.Rollback()

	for _, name := range sortedKeys(c.Settings) {
		if !settingNameRe.MatchString(name) {
			return nil, errors.Errorf("invalid optimizer setting name %q", name)
		}
		stmt := "SET LOCAL " + name + " = " + quoteLiteral(c.Settings[name])
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return nil, errors.Annotatef(err, "execute %s", stmt)
		}
	}

	explain := "EXPLAIN (FORMAT JSON"
	if c.Analyze {
		explain += ", ANALYZE"
	}
	explain += ") " + query

	var explainJSON string
	if err = tx.QueryRowContext(ctx, explain).Scan(&explainJSON); err != nil {
		return nil, errors.Annotatef(err, "execute EXPLAIN for query: %s", query)
	}
	if err = tx.Rollback(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
		return nil, errors.Trace(err)
	}

	return convertExplainOutput(c.Label, query, []byte(explainJSON))
}

func sortedKeys(m map[string]string) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	slices.Sort(ret)
	return ret
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// pgNode mirrors the subset of PostgreSQL EXPLAIN JSON fields the raw
// document format carries.
type pgNode struct {
	NodeType           string   `json:"Node Type"`
	Strategy           string   `json:"Strategy"`
	ParentRelationship string   `json:"Parent Relationship"`
	RelationName       string   `json:"Relation Name"`
	IndexName          string   `json:"Index Name"`
	CTEName            string   `json:"CTE Name"`
	JoinType           string   `json:"Join Type"`
	StartupCost        float64  `json:"Startup Cost"`
	TotalCost          float64  `json:"Total Cost"`
	PlanRows           int64    `json:"Plan Rows"`
	PlanWidth          *int     `json:"Plan Width"`
	ActualTotalTime    *float64 `json:"Actual Total Time"`
	ActualRows         *int64   `json:"Actual Rows"`
	Filter             string   `json:"Filter"`
	IndexCond          string   `json:"Index Cond"`
	HashCond           string   `json:"Hash Cond"`
	MergeCond          string   `json:"Merge Cond"`
	JoinFilter         string   `json:"Join Filter"`
	SortKey            []string `json:"Sort Key"`
	GroupKey           []string `json:"Group Key"`
	Plans              []pgNode `json:"Plans"`
}

type pgExplainOutput struct {
	Plan          pgNode   `json:"Plan"`
	PlanningTime  *float64 `json:"Planning Time"`
	ExecutionTime *float64 `json:"Execution Time"`
}

type rawNode struct {
	Operator       string            `json:"operator"`
	Relation       string            `json:"relation,omitempty"`
	EstimatedCost  float64           `json:"estimatedCost"`
	EstimatedRows  int64             `json:"estimatedRows"`
	EstimatedWidth *int              `json:"estimatedWidth,omitempty"`
	ActualCost     *float64          `json:"actualCost,omitempty"`
	ActualRows     *int64            `json:"actualRows,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	Children       []*rawNode        `json:"children,omitempty"`
}

type rawDocument struct {
	Label         string   `json:"label"`
	Query         string   `json:"query"`
	PlanningTime  *float64 `json:"planningTime,omitempty"`
	ExecutionTime *float64 `json:"executionTime,omitempty"`
	Plan          *rawNode `json:"plan"`
}

// convertExplainOutput rewrites PostgreSQL EXPLAIN (FORMAT JSON) output into
// the raw document format the plan parser consumes.
func convertExplainOutput(label, query string, explainJSON []byte) ([]byte, error) {
	var outputs []pgExplainOutput
	if err := json.Unmarshal(explainJSON, &outputs); err != nil {
		return nil, errors.Annotate(err, "decode EXPLAIN JSON output")
	}
	if len(outputs) == 0 {
		return nil, errors.New("EXPLAIN returned no plan")
	}

	doc := rawDocument{
		Label:         label,
		Query:         query,
		PlanningTime:  outputs[0].PlanningTime,
		ExecutionTime: outputs[0].ExecutionTime,
		Plan:          convertPGNode(&outputs[0].Plan),
	}
	return json.Marshal(&doc)
}

func convertPGNode(n *pgNode) *rawNode {
	ret := &rawNode{
		Operator:       operatorName(n),
		Relation:       n.RelationName,
		EstimatedCost:  n.TotalCost,
		EstimatedRows:  n.PlanRows,
		EstimatedWidth: n.PlanWidth,
		ActualCost:     n.ActualTotalTime,
		ActualRows:     n.ActualRows,
		Attributes:     nodeAttributes(n),
	}
	for i := range n.Plans {
		ret.Children = append(ret.Children, convertPGNode(&n.Plans[i]))
	}
	return ret
}

// operatorName folds the Aggregate strategy into the operator name, the way
// text-mode EXPLAIN names them.
func operatorName(n *pgNode) string {
	if n.NodeType == "Aggregate" {
		switch n.Strategy {
		case "Sorted":
			return "GroupAggregate"
		case "Hashed":
			return "HashAggregate"
		}
	}
	return n.NodeType
}

func nodeAttributes(n *pgNode) map[string]string {
	ret := make(map[string]string)
	put := func(key, value string) {
		if value != "" {
			ret[key] = value
		}
	}
	put("Filter", n.Filter)
	put("Index Cond", n.IndexCond)
	put("Hash Cond", n.HashCond)
	put("Merge Cond", n.MergeCond)
	put("Join Filter", n.JoinFilter)
	put("Join Type", n.JoinType)
	put("Index Name", n.IndexName)
	put("CTE Name", n.CTEName)
	put("Parent Relationship", n.ParentRelationship)
	put("Sort Key", strings.Join(n.SortKey, ", "))
	put("Group Key", strings.Join(n.GroupKey, ", "))
	if len(ret) == 0 {
		return nil
	}
	return ret
}
