package qpc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const baseDocument = `{
  "label": "base",
  "query": "SELECT * FROM t1 JOIN t2 ON t1.id = t2.id",
  "plan": {
    "operator": "HashJoin",
    "estimatedCost": 120.75,
    "estimatedRows": 1000,
    "children": [
      {"operator": "SeqScan", "relation": "t1", "estimatedCost": 35.5, "estimatedRows": 2550},
      {"operator": "SeqScan", "relation": "t2", "estimatedCost": 35.5, "estimatedRows": 2550}
    ]
  }
}`

const candidateDocument = `{
  "label": "candidate",
  "query": "SELECT * FROM t1 JOIN t2 ON t1.id = t2.id",
  "plan": {
    "operator": "MergeJoin",
    "estimatedCost": 150.25,
    "estimatedRows": 1000,
    "children": [
      {"operator": "SeqScan", "relation": "t1", "estimatedCost": 35.5, "estimatedRows": 2550},
      {"operator": "SeqScan", "relation": "t2", "estimatedCost": 35.5, "estimatedRows": 2550}
    ]
  }
}`

func TestRunFromPlanFiles(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.json")
	candidatePath := filepath.Join(dir, "candidate.json")
	require.NoError(t, os.WriteFile(basePath, []byte(baseDocument), 0666))
	require.NoError(t, os.WriteFile(candidatePath, []byte(candidateDocument), 0666))

	workDir := t.TempDir()
	cfg := &Config{
		PlanFiles: []string{"base=" + basePath, "candidate=" + candidatePath},
		WorkDir:   workDir,
	}
	require.NoError(t, Run(context.Background(), cfg))

	// raw documents, parsed plans and the report are persisted
	_, err := os.Stat(filepath.Join(workDir, "raw-plans", "base.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(workDir, "plans", "candidate.json"))
	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(workDir, "report.html"))
	require.NoError(t, err)
	require.Contains(t, string(content), "base vs candidate")
	require.Contains(t, string(content), "MergeJoin")
}

func TestRunNoPlans(t *testing.T) {
	cfg := &Config{WorkDir: t.TempDir()}
	err := Run(context.Background(), cfg)
	require.ErrorContains(t, err, "no plans to compare")
}

func TestRunQueryFromDocument(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.json")
	require.NoError(t, os.WriteFile(basePath, []byte(baseDocument), 0666))

	cfg := &Config{
		PlanFiles: []string{basePath},
		WorkDir:   t.TempDir(),
	}
	require.NoError(t, Run(context.Background(), cfg))
}

func TestRunCaptureWithoutDSN(t *testing.T) {
	cfg := &Config{
		Query:    "SELECT 1",
		Captures: []string{"base"},
		WorkDir:  t.TempDir(),
	}
	err := Run(context.Background(), cfg)
	require.ErrorContains(t, err, "--capture needs --dsn")
}
