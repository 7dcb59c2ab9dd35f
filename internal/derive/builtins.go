package derive

import (
	"fmt"
	"math"

	"github.com/joaquim-lab/chipstage/pkg/table"
)

// PeakTransconductance extracts the peak transconductance point
// (gm = dIds/dVg) from an IVg sweep: a single-measurement extractor.
type PeakTransconductance struct {
	GateColumn  string
	CurrentColumn string
	Procedures  []string
}

func (e PeakTransconductance) Name() string     { return "peak_gm" }
func (e PeakTransconductance) Category() string  { return "transfer_curve" }
func (e PeakTransconductance) Version() string   { return "v1" }
func (e PeakTransconductance) AppliesTo(procedure string) bool {
	for _, p := range e.Procedures {
		if p == procedure {
			return true
		}
	}
	return false
}
func (e PeakTransconductance) Validate(r Result) bool { return r.Value != "" }

func (e PeakTransconductance) ExtractSingle(tbl *table.Table, meta Manifest) []Result {
	vg, ok1 := tbl.Columns[e.GateColumn]
	ids, ok2 := tbl.Columns[e.CurrentColumn]
	if !ok1 || !ok2 || len(vg.Flts) < 2 {
		return nil
	}

	var peak float64
	var peakVg float64
	found := false
	for i := 0; i+1 < len(vg.Flts); i++ {
		if !vg.Valid[i] || !vg.Valid[i+1] || !ids.Valid[i] || !ids.Valid[i+1] {
			continue
		}
		dv := vg.Flts[i+1] - vg.Flts[i]
		if dv == 0 {
			continue
		}
		gm := (ids.Flts[i+1] - ids.Flts[i]) / dv
		if !found || math.Abs(gm) > math.Abs(peak) {
			peak = gm
			peakVg = vg.Flts[i]
			found = true
		}
	}
	if !found {
		return nil
	}

	return []Result{{
		MetricName: e.Name(),
		Value:      fmt.Sprintf("%g", peak),
		Unit:       "S",
		Method:     fmt.Sprintf("finite_difference@Vg=%g", peakVg),
		Confidence: 1.0,
	}}
}

// PhotocurrentDelta extracts the illuminated-minus-dark current delta
// between two consecutive same-chip, same-procedure measurements: a
// pairwise extractor.
type PhotocurrentDelta struct {
	CurrentColumn string
	Procedures    []string
}

func (e PhotocurrentDelta) Name() string    { return "photocurrent_delta" }
func (e PhotocurrentDelta) Category() string { return "illumination_response" }
func (e PhotocurrentDelta) Version() string  { return "v1" }
func (e PhotocurrentDelta) AppliesTo(procedure string) bool {
	for _, p := range e.Procedures {
		if p == procedure {
			return true
		}
	}
	return false
}
func (e PhotocurrentDelta) Validate(r Result) bool { return r.Value != "" }

// ShouldPair requires both measurements to have a resolved illumination
// flag and for exactly one of the pair to be illuminated — an
// illuminated/dark pair is the only case a photocurrent delta is
// meaningful for.
func (e PhotocurrentDelta) ShouldPair(a, b Manifest) bool {
	if a.Illuminated == nil || b.Illuminated == nil {
		return false
	}
	return *a.Illuminated != *b.Illuminated
}

func (e PhotocurrentDelta) ExtractPair(tblA, tblB *table.Table, a, b Manifest) []Result {
	colA, okA := tblA.Columns[e.CurrentColumn]
	colB, okB := tblB.Columns[e.CurrentColumn]
	if !okA || !okB {
		return nil
	}

	meanA, okMeanA := meanValid(colA)
	meanB, okMeanB := meanValid(colB)
	if !okMeanA || !okMeanB {
		return nil
	}

	delta := meanB - meanA
	if *b.Illuminated && !*a.Illuminated {
		// b is the illuminated one; delta already illuminated - dark
	} else {
		delta = -delta
	}

	return []Result{{
		MetricName: e.Name(),
		Value:      fmt.Sprintf("%g", delta),
		Unit:       "A",
		Method:     "mean_current_difference",
		Confidence: 0.8,
	}}
}

func meanValid(c *table.Column) (float64, bool) {
	sum := 0.0
	n := 0
	for i, ok := range c.Valid {
		if !ok {
			continue
		}
		sum += c.Flts[i]
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
