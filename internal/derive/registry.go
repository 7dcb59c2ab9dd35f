// Package derive implements C5, the metric pipeline: a registry of
// extractors over staged measurements, a single-measurement phase, a
// pairwise-consecutive phase, and enrichment that joins selected metrics
// back into chip histories.
package derive

import (
	"sort"
	"sync"

	"github.com/joaquim-lab/chipstage/pkg/table"
)

// Manifest is the subset of one manifest/history row an extractor needs:
// its metadata, without forcing extractors to know the full table layout.
type Manifest struct {
	Identity      string
	ChipGroup     string
	ChipNumber    string
	Procedure     string
	Seq           int64
	StartUTC      int64 // unix nanoseconds
	PartitionPath string
	Illuminated   *bool // nil when undetermined at enrichment time
}

// Result is one emitted metric value, before the fixed long-form columns
// (identity, chip, procedure, ...) are attached.
type Result struct {
	MetricName string
	Value      string // float/int/string/JSON-encoded, per the value union
	Unit       string
	Method     string
	Confidence float64
	Flags      []string
}

// Extractor is the capability shared by both extractor kinds: a unique
// metric name, category, extraction-version, and the procedures it
// applies to.
type Extractor interface {
	Name() string
	Category() string
	Version() string
	AppliesTo(procedure string) bool
	// Validate is a total function from a result to boolean; false drops
	// the result silently.
	Validate(Result) bool
}

// SingleExtractor consumes one measurement.
type SingleExtractor interface {
	Extractor
	ExtractSingle(tbl *table.Table, meta Manifest) []Result
}

// PairExtractor consumes two consecutive measurements of the same
// chip+procedure. ShouldPair decides, for a candidate adjacent pair,
// whether the pair is valid; all applicable pairwise extractors must
// agree before a pair materializes.
type PairExtractor interface {
	Extractor
	ShouldPair(a, b Manifest) bool
	ExtractPair(tblA, tblB *table.Table, a, b Manifest) []Result
}

// Registry is the process-start-time list of built-in extractors — the
// design notes' replacement for decorator-based dynamic plugin discovery:
// an explicit registration list populated once, not introspected.
type Registry struct {
	mu      sync.RWMutex
	singles []SingleExtractor
	pairs   []PairExtractor
}

// NewRegistry returns an empty registry; callers register built-ins via
// RegisterSingle/RegisterPair at process start.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) RegisterSingle(e SingleExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singles = append(r.singles, e)
}

func (r *Registry) RegisterPair(e PairExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = append(r.pairs, e)
}

func (r *Registry) SinglesFor(procedure string) []SingleExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []SingleExtractor
	for _, e := range r.singles {
		if e.AppliesTo(procedure) {
			out = append(out, e)
		}
	}
	sortByName(out, func(i int) string { return out[i].Name() })
	return out
}

func (r *Registry) PairsFor(procedure string) []PairExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []PairExtractor
	for _, e := range r.pairs {
		if e.AppliesTo(procedure) {
			out = append(out, e)
		}
	}
	sortByName(out, func(i int) string { return out[i].Name() })
	return out
}

// sortByName stable-sorts any slice by a name accessor, keeping extractor
// iteration order deterministic across runs regardless of registration
// order.
func sortByName[T any](s []T, name func(i int) string) {
	sort.SliceStable(s, func(i, j int) bool { return name(i) < name(j) })
}
