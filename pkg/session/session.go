// Package session orchestrates parsing, normalizing, aligning and diffing
// across the N candidate plans of one query.
package session

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/lance6716/query-plan-comparer/pkg/align"
	"github.com/lance6716/query-plan-comparer/pkg/diff"
	"github.com/lance6716/query-plan-comparer/pkg/normalize"
	"github.com/lance6716/query-plan-comparer/pkg/plan"
	"github.com/pingcap/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

// PairingStrategy selects which plan pairs a Compare call diffs.
type PairingStrategy string

const (
	// AllPairs diffs every unordered pair of plans.
	AllPairs PairingStrategy = "all-pairs"
	// BaselineVsRest diffs the first added plan against each of the others.
	BaselineVsRest PairingStrategy = "baseline-vs-rest"
)

// ParsePairingStrategy validates a strategy name from configuration.
func ParsePairingStrategy(s string) (PairingStrategy, error) {
	switch PairingStrategy(s) {
	case AllPairs:
		return AllPairs, nil
	case BaselineVsRest:
		return BaselineVsRest, nil
	}
	return "", errors.Errorf("unknown pairing strategy %q, expected %q or %q",
		s, AllPairs, BaselineVsRest)
}

// QueryMismatchError reports a plan document that carries a different query
// text than the session's query. The caller can recover by re-selecting
// plans.
type QueryMismatchError struct {
	Label         string
	SessionQuery  string
	DocumentQuery string
}

func (e *QueryMismatchError) Error() string {
	return fmt.Sprintf(
		"plan document %q belongs to a different query: session compares %q, document carries %q",
		e.Label, e.SessionQuery, e.DocumentQuery,
	)
}

// Session owns the plans and diff results of one comparison task. It does no
// I/O itself; raw documents come from collaborators.
type Session struct {
	query       string
	model       align.CostModel
	strategy    PairingStrategy
	concurrency int

	labels []string
	docs   map[string][]byte
	// cache of parse+normalize results keyed by document label. LoadOrCompute
	// runs the compute function once per key while concurrent requesters
	// wait, which is exactly the single-writer-per-key rule the cache needs.
	cache *xsync.MapOf[string, *cacheEntry]
}

type cacheEntry struct {
	parsed     *plan.Plan
	normalized *plan.Plan
	err        error
}

type Option func(*Session)

// WithCostModel overrides the default alignment cost model.
func WithCostModel(model align.CostModel) Option {
	return func(s *Session) { s.model = model }
}

// WithPairing selects the pairing strategy, default AllPairs.
func WithPairing(strategy PairingStrategy) Option {
	return func(s *Session) { s.strategy = strategy }
}

// WithConcurrency bounds the number of parallel pairwise diff tasks.
func WithConcurrency(n int) Option {
	return func(s *Session) { s.concurrency = n }
}

// New creates a Session for one query text.
func New(query string, opts ...Option) *Session {
	ret := &Session{
		query:       query,
		model:       align.DefaultCostModel(),
		strategy:    AllPairs,
		concurrency: runtime.GOMAXPROCS(0),
		docs:        make(map[string][]byte),
		cache:       xsync.NewMapOf[string, *cacheEntry](),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// AddDocument registers a labeled raw plan document. Parsing happens lazily
// on first use. The first added document is the baseline for
// BaselineVsRest.
func (s *Session) AddDocument(label string, content []byte) error {
	if label == "" {
		return errors.New("plan document label must not be empty")
	}
	if _, ok := s.docs[label]; ok {
		return errors.Errorf("duplicate plan document label %q", label)
	}
	s.labels = append(s.labels, label)
	s.docs[label] = content
	return nil
}

// Labels returns the document labels in insertion order.
func (s *Session) Labels() []string {
	return s.labels
}

// SetPairing changes the pairing strategy for subsequent Compare calls.
// Cached parse results are kept, so re-comparing under a different pairing
// does not re-parse.
func (s *Session) SetPairing(strategy PairingStrategy) {
	s.strategy = strategy
}

// Plan returns the canonical (parsed, un-normalized) tree of one document,
// for rendering.
func (s *Session) Plan(label string) (*plan.Plan, error) {
	entry, err := s.entry(label)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return entry.parsed, nil
}

func (s *Session) entry(label string) (*cacheEntry, error) {
	content, ok := s.docs[label]
	if !ok {
		return nil, errors.Errorf("unknown plan document label %q", label)
	}
	entry, _ := s.cache.LoadOrCompute(label, func() *cacheEntry {
		parsed, err := plan.ParseDocument(label, content)
		if err != nil {
			return &cacheEntry{err: err}
		}
		if parsed.Query != "" && parsed.Query != s.query {
			return &cacheEntry{err: &QueryMismatchError{
				Label:         label,
				SessionQuery:  s.query,
				DocumentQuery: parsed.Query,
			}}
		}
		// the aligner rejects plans with differing query texts; stamp the
		// session query so documents without one participate
		parsed.Query = s.query
		return &cacheEntry{parsed: parsed, normalized: normalize.Normalize(parsed)}
	})
	if entry.err != nil {
		return nil, errors.Trace(entry.err)
	}
	return entry, nil
}

// Pair names the two documents of one diff result.
type Pair struct {
	LabelA string
	LabelB string
}

// Pairs returns the label pairs the current strategy selects, in a
// deterministic order.
func (s *Session) Pairs() []Pair {
	var ret []Pair
	switch s.strategy {
	case BaselineVsRest:
		for _, label := range s.labels[1:] {
			ret = append(ret, Pair{LabelA: s.labels[0], LabelB: label})
		}
	default:
		for i, labelA := range s.labels {
			for _, labelB := range s.labels[i+1:] {
				ret = append(ret, Pair{LabelA: labelA, LabelB: labelB})
			}
		}
	}
	return ret
}

// Compare runs aligner and summarizer for every selected pair. Pairs are
// independent, so they run on a bounded worker pool; cancellation is checked
// between pairwise tasks, not mid-algorithm, because a single alignment over
// a small plan tree finishes quickly anyway.
func (s *Session) Compare(ctx context.Context) ([]*diff.Result, error) {
	if len(s.labels) == 0 {
		return nil, errors.New("session has no plan documents")
	}

	pairs := s.Pairs()
	results := make([]*diff.Result, len(pairs))
	aligner := align.NewAligner(s.model)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, pair := range pairs {
		if err := gctx.Err(); err != nil {
			break
		}
		i, pair := i, pair
		g.Go(func() error {
			entryA, err := s.entry(pair.LabelA)
			if err != nil {
				return errors.Trace(err)
			}
			entryB, err := s.entry(pair.LabelB)
			if err != nil {
				return errors.Trace(err)
			}
			corr, err := aligner.Align(entryA.normalized, entryB.normalized)
			if err != nil {
				return errors.Trace(err)
			}
			results[i] = diff.Summarize(entryA.normalized, entryB.normalized, corr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return results, nil
}

// DistinctPlans groups the session's labels by structural plan identity:
// labels whose normalized trees share the same operators, relations and
// shape land in one group. Groups follow first-seen order.
func (s *Session) DistinctPlans() ([][]string, error) {
	var (
		order  []string
		groups = make(map[string][]string)
	)
	for _, label := range s.labels {
		entry, err := s.entry(label)
		if err != nil {
			return nil, errors.Trace(err)
		}
		fp := fingerprint(entry.normalized.Root)
		if _, ok := groups[fp]; !ok {
			order = append(order, fp)
		}
		groups[fp] = append(groups[fp], label)
	}

	ret := make([][]string, 0, len(order))
	for _, fp := range order {
		ret = append(ret, groups[fp])
	}
	return ret, nil
}

func fingerprint(n *plan.PlanNode) string {
	var sb strings.Builder
	fingerprintNode(&sb, n)
	return sb.String()
}

func fingerprintNode(sb *strings.Builder, n *plan.PlanNode) {
	sb.WriteString(n.Operator)
	if n.Relation != "" {
		sb.WriteByte(':')
		sb.WriteString(n.Relation)
	}
	sb.WriteByte('(')
	for i, child := range n.Children {
		if i > 0 {
			sb.WriteByte(',')
		}
		fingerprintNode(sb, child)
	}
	sb.WriteByte(')')
}
