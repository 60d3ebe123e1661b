package qpc

import (
	"context"
	"fmt"
	"os"

	"github.com/lance6716/query-plan-comparer/pkg/align"
	"github.com/lance6716/query-plan-comparer/pkg/filemgr"
	"github.com/lance6716/query-plan-comparer/pkg/plan"
	"github.com/lance6716/query-plan-comparer/pkg/report"
	"github.com/lance6716/query-plan-comparer/pkg/session"
	"github.com/lance6716/query-plan-comparer/pkg/source"
	"github.com/lance6716/query-plan-comparer/pkg/util"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// Run is the main entry function of the qpc logic.
func Run(ctx context.Context, cfg *Config) error {
	cfg.ensureDefaults()
	util.InitFileLogger(cfg.Log.Filename)

	strategy, err := session.ParsePairingStrategy(cfg.Pairing)
	if err != nil {
		return errors.Trace(err)
	}
	model := align.DefaultCostModel()
	if cfg.CostModelFile != "" {
		model, err = align.LoadCostModel(cfg.CostModelFile)
		if err != nil {
			return errors.Trace(err)
		}
	}

	docs, err := collectDocuments(ctx, cfg)
	if err != nil {
		return errors.Trace(err)
	}
	if len(docs) == 0 {
		return errors.New("no plans to compare, give --plan-file or --capture")
	}

	query, err := resolveQuery(cfg, docs)
	if err != nil {
		return errors.Trace(err)
	}

	mgr := filemgr.NewManager(cfg.WorkDir)
	opts := []session.Option{
		session.WithCostModel(model),
		session.WithPairing(strategy),
	}
	if cfg.Concurrency > 0 {
		opts = append(opts, session.WithConcurrency(cfg.Concurrency))
	}
	sess := session.New(query, opts...)
	for _, doc := range docs {
		if err = sess.AddDocument(doc.Label, doc.Content); err != nil {
			return errors.Trace(err)
		}
		if err = mgr.WriteRawDocument(doc.Label, doc.Content); err != nil {
			return errors.Trace(err)
		}
	}

	results, err := sess.Compare(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	plans := make([]*plan.Plan, 0, len(sess.Labels()))
	for _, label := range sess.Labels() {
		p, err2 := sess.Plan(label)
		if err2 != nil {
			return errors.Trace(err2)
		}
		if err2 = mgr.WritePlan(p); err2 != nil {
			return errors.Trace(err2)
		}
		plans = append(plans, p)
		if cfg.PrintPlans {
			fmt.Printf("%s:\n%s\n", label, plan.Render(p.Root))
		}
	}

	groups, err := sess.DistinctPlans()
	if err != nil {
		return errors.Trace(err)
	}
	for _, r := range results {
		util.Logger.Info("compared plans",
			zap.String("labelA", r.LabelA),
			zap.String("labelB", r.LabelB),
			zap.Float64("similarity", r.Similarity))
	}

	reportPath := mgr.ReportPath()
	if err = report.Render(report.Build(query, plans, groups, results), reportPath); err != nil {
		return errors.Trace(err)
	}
	util.Logger.Info("report written",
		zap.Int("plans", len(plans)),
		zap.Int("distinctPlans", len(groups)),
		zap.String("path", reportPath))
	return nil
}

// collectDocuments gathers raw plan documents from files and from live
// capture, files first.
func collectDocuments(ctx context.Context, cfg *Config) ([]source.Document, error) {
	var ret []source.Document
	for _, spec := range cfg.PlanFiles {
		f, err := parsePlanFile(spec)
		if err != nil {
			return nil, errors.Trace(err)
		}
		content, err := os.ReadFile(f.path)
		if err != nil {
			return nil, errors.Annotatef(err, "read plan file for label %q", f.label)
		}
		ret = append(ret, source.Document{Label: f.label, Content: content})
	}

	if len(cfg.Captures) == 0 {
		return ret, nil
	}
	if cfg.DSN == "" {
		return nil, errors.New("--capture needs --dsn")
	}
	query, err := configuredQuery(cfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if query == "" {
		return nil, errors.New("--capture needs --query or --query-file")
	}

	captures := make([]source.Capture, 0, len(cfg.Captures))
	for _, spec := range cfg.Captures {
		c, err2 := parseCapture(spec, cfg.Analyze)
		if err2 != nil {
			return nil, errors.Trace(err2)
		}
		captures = append(captures, c)
	}

	db, err := source.Connect(cfg.DSN)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer db.Close()
	captured, err := source.CaptureDocuments(ctx, db, query, captures)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return append(ret, captured...), nil
}

func configuredQuery(cfg *Config) (string, error) {
	if cfg.Query != "" {
		return cfg.Query, nil
	}
	if cfg.QueryFile == "" {
		return "", nil
	}
	content, err := os.ReadFile(cfg.QueryFile)
	if err != nil {
		return "", errors.Annotatef(err, "read query file %s", cfg.QueryFile)
	}
	return string(content), nil
}

// resolveQuery returns the query text the session compares under. When the
// configuration carries none, the first document that names its query wins.
func resolveQuery(cfg *Config, docs []source.Document) (string, error) {
	query, err := configuredQuery(cfg)
	if err != nil || query != "" {
		return query, err
	}
	for _, doc := range docs {
		p, err2 := plan.ParseDocument(doc.Label, doc.Content)
		if err2 != nil {
			return "", errors.Trace(err2)
		}
		if p.Query != "" {
			return p.Query, nil
		}
	}
	return "", errors.New("no query text found, give --query or --query-file")
}
