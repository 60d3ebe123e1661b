package qpc

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/lance6716/query-plan-comparer/pkg/source"
	"github.com/pingcap/errors"
)

// Config is a static struct for qpc's configuration.
type Config struct {
	// Query is the SQL text all compared plans must belong to. When empty,
	// QueryFile is read instead; when both are empty the query is taken from
	// the first plan file.
	Query     string
	QueryFile string

	// PlanFiles are raw plan documents to compare, each "label=path" or a
	// bare path whose base name becomes the label.
	PlanFiles []string

	// DSN and Captures drive live plan capture. Each capture is
	// "label=setting:value,setting:value" or a bare label for default
	// optimizer settings.
	DSN      string
	Captures []string
	Analyze  bool

	Pairing       string
	Concurrency   int
	CostModelFile string
	PrintPlans    bool

	WorkDir string
	Log     Log
}

type Log struct {
	Filename string
}

const defaultWorkSubDir = "query-plan-comparer"

func (c *Config) ensureDefaults() {
	if c.Pairing == "" {
		c.Pairing = "all-pairs"
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), defaultWorkSubDir)
	}
}

// planFile is one parsed PlanFiles entry.
type planFile struct {
	label string
	path  string
}

func parsePlanFile(spec string) (planFile, error) {
	label, path, found := strings.Cut(spec, "=")
	if !found {
		path = spec
		base := filepath.Base(path)
		label = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if label == "" || path == "" {
		return planFile{}, errors.Errorf(
			"invalid plan file %q, expected label=path or a bare path", spec)
	}
	return planFile{label: label, path: path}, nil
}

func parseCapture(spec string, analyze bool) (source.Capture, error) {
	label, settingList, found := strings.Cut(spec, "=")
	if label == "" {
		return source.Capture{}, errors.Errorf(
			"invalid capture %q, expected label=setting:value,... or a bare label", spec)
	}
	ret := source.Capture{Label: label, Analyze: analyze}
	if !found || settingList == "" {
		return ret, nil
	}

	ret.Settings = make(map[string]string)
	for _, item := range strings.Split(settingList, ",") {
		name, value, ok := strings.Cut(item, ":")
		if !ok || name == "" {
			return source.Capture{}, errors.Errorf(
				"invalid capture setting %q in %q, expected setting:value", item, spec)
		}
		ret.Settings[name] = value
	}
	return ret, nil
}
