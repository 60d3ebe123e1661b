package filemgr

import (
	"encoding/json"
	"os"
	"path"

	"github.com/lance6716/query-plan-comparer/pkg/plan"
	"github.com/lance6716/query-plan-comparer/pkg/util"
	"github.com/pingcap/errors"
)

const (
	rawPlanDir     = "raw-plans"
	planDir        = "plans"
	planExt        = ".json"
	reportFilename = "report.html"
)

// Manager owns a work directory and organizes the files of one comparison
// run. The hierarchy is
//
//	<workDir>/raw-plans/<label>.json   documents as received or captured
//	<workDir>/plans/<label>.json       parsed and normalized plans
//	<workDir>/report.html              the rendered report
type Manager struct {
	workDir string
}

// NewManager creates a new Manager instance on the given work directory.
func NewManager(workDir string) *Manager {
	return &Manager{workDir: workDir}
}

// WriteRawDocument persists a raw plan document under its label, so a run
// can be replayed later without a database.
func (m *Manager) WriteRawDocument(label string, content []byte) error {
	dir := path.Join(m.workDir, rawPlanDir)
	if err := os.MkdirAll(dir, 0776); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(util.AtomicWrite(
		path.Join(dir, util.EscapePath(label)+planExt), content,
	))
}

// WritePlan persists a parsed plan under its label. The file uses the raw
// document format, so ReadPlan and the document parser can read it back.
func (m *Manager) WritePlan(p *plan.Plan) error {
	dir := path.Join(m.workDir, planDir)
	if err := os.MkdirAll(dir, 0776); err != nil {
		return errors.Trace(err)
	}
	content, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(util.AtomicWrite(
		path.Join(dir, util.EscapePath(p.Label)+planExt), content,
	))
}

// ReadPlan loads a previously persisted plan back.
func (m *Manager) ReadPlan(label string) (*plan.Plan, error) {
	content, err := os.ReadFile(path.Join(
		m.workDir, planDir, util.EscapePath(label)+planExt,
	))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return plan.ParseDocument(label, content)
}

// ReportPath returns the path the HTML report is written to.
func (m *Manager) ReportPath() string {
	return path.Join(m.workDir, reportFilename)
}
