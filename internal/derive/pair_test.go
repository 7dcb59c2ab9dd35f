package derive

import (
	"errors"
	"testing"

	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPair struct {
	name       string
	procedures []string
	pairOK     bool
}

func (s stubPair) Name() string     { return s.name }
func (s stubPair) Category() string { return "stub" }
func (s stubPair) Version() string  { return "v1" }
func (s stubPair) Validate(r Result) bool { return r.Value != "" }
func (s stubPair) AppliesTo(procedure string) bool {
	for _, p := range s.procedures {
		if p == procedure {
			return true
		}
	}
	return false
}
func (s stubPair) ShouldPair(a, b Manifest) bool { return s.pairOK }
func (s stubPair) ExtractPair(tblA, tblB *table.Table, a, b Manifest) []Result {
	return []Result{{MetricName: s.name, Value: "1"}}
}

func TestRunPairwiseGroupsByChipAndProcedure(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterPair(stubPair{name: "p1", procedures: []string{"IVg"}, pairOK: true})

	rows := []Manifest{
		{Identity: "a1", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 3},
		{Identity: "a2", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 1},
		{Identity: "b1", ChipGroup: "B", ChipNumber: "1", Procedure: "IVg", StartUTC: 1},
	}
	tbl := table.New(nil, 0)
	out := RunPairwise(reg, rows, loaderReturning(tbl, nil), discardLogger())

	// chip A has 2 rows (one adjacent pair after sort), chip B has 1 row (no pair)
	require.Len(t, out, 1)
	assert.Equal(t, "a2+a1", out[0].SourceIdentity)
}

func TestRunPairwiseSortsChronologicallyWithinGroup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterPair(stubPair{name: "p1", procedures: []string{"IVg"}, pairOK: true})

	rows := []Manifest{
		{Identity: "late", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 100},
		{Identity: "early", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 10},
	}
	tbl := table.New(nil, 0)
	out := RunPairwise(reg, rows, loaderReturning(tbl, nil), discardLogger())

	require.Len(t, out, 1)
	assert.Equal(t, "early+late", out[0].SourceIdentity)
}

func TestRunPairwiseRequiresAllExtractorsToAgree(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterPair(stubPair{name: "p1", procedures: []string{"IVg"}, pairOK: true})
	reg.RegisterPair(stubPair{name: "p2", procedures: []string{"IVg"}, pairOK: false})

	rows := []Manifest{
		{Identity: "a1", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 1},
		{Identity: "a2", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 2},
	}
	tbl := table.New(nil, 0)
	out := RunPairwise(reg, rows, loaderReturning(tbl, nil), discardLogger())
	assert.Empty(t, out)
}

func TestRunPairwiseNoExtractorsForProcedureSkipsGroup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterPair(stubPair{name: "p1", procedures: []string{"CV"}, pairOK: true})

	rows := []Manifest{
		{Identity: "a1", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 1},
		{Identity: "a2", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 2},
	}
	tbl := table.New(nil, 0)
	out := RunPairwise(reg, rows, loaderReturning(tbl, nil), discardLogger())
	assert.Empty(t, out)
}

type panickingPair struct{ stubPair }

func (p panickingPair) ExtractPair(tblA, tblB *table.Table, a, b Manifest) []Result {
	panic("boom")
}

func TestSafeExtractPairRecoversPanic(t *testing.T) {
	e := panickingPair{stubPair{name: "boomer", procedures: []string{"IVg"}, pairOK: true}}
	results := safeExtractPair(e, table.New(nil, 0), table.New(nil, 0), Manifest{Identity: "a"}, Manifest{Identity: "b"}, discardLogger())
	assert.Nil(t, results)
}

func TestRunPairwiseSkipsWhenLoadFails(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterPair(stubPair{name: "p1", procedures: []string{"IVg"}, pairOK: true})

	rows := []Manifest{
		{Identity: "a1", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 1},
		{Identity: "a2", ChipGroup: "A", ChipNumber: "1", Procedure: "IVg", StartUTC: 2},
	}
	out := RunPairwise(reg, rows, loaderReturning(nil, errors.New("load failed")), discardLogger())
	assert.Empty(t, out)
}
