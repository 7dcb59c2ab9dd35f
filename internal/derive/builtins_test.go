package derive

import (
	"testing"

	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateCurrentTable(vg, ids []float64) *table.Table {
	tbl := table.New([]table.ColumnDef{
		{Name: "Vg (V)", Type: table.TypeFloat},
		{Name: "Ids (A)", Type: table.TypeFloat},
	}, len(vg))
	for i := range vg {
		tbl.Columns["Vg (V)"].SetFloat(i, vg[i])
		tbl.Columns["Ids (A)"].SetFloat(i, ids[i])
	}
	return tbl
}

func TestPeakTransconductanceFindsMaxSlope(t *testing.T) {
	e := PeakTransconductance{GateColumn: "Vg (V)", CurrentColumn: "Ids (A)", Procedures: []string{"IVg"}}
	tbl := gateCurrentTable(
		[]float64{0.0, 0.5, 1.0, 1.5},
		[]float64{0.0, 1.0, 5.0, 5.5},
	)

	results := e.ExtractSingle(tbl, Manifest{Identity: "id1"})
	require.Len(t, results, 1)
	assert.Equal(t, "peak_gm", results[0].MetricName)
	assert.Equal(t, "S", results[0].Unit)
}

func TestPeakTransconductanceTooFewPoints(t *testing.T) {
	e := PeakTransconductance{GateColumn: "Vg (V)", CurrentColumn: "Ids (A)", Procedures: []string{"IVg"}}
	tbl := gateCurrentTable([]float64{0.0}, []float64{0.0})

	results := e.ExtractSingle(tbl, Manifest{Identity: "id1"})
	assert.Nil(t, results)
}

func TestPeakTransconductanceAppliesToRestriction(t *testing.T) {
	e := PeakTransconductance{Procedures: []string{"IVg"}}
	assert.True(t, e.AppliesTo("IVg"))
	assert.False(t, e.AppliesTo("CV"))
}

func currentTable(values []float64) *table.Table {
	tbl := table.New([]table.ColumnDef{{Name: "Ids (A)", Type: table.TypeFloat}}, len(values))
	for i, v := range values {
		tbl.Columns["Ids (A)"].SetFloat(i, v)
	}
	return tbl
}

func TestPhotocurrentDeltaShouldPairRequiresOppositeIllumination(t *testing.T) {
	e := PhotocurrentDelta{}
	lit, dark := true, false

	assert.True(t, e.ShouldPair(Manifest{Illuminated: &dark}, Manifest{Illuminated: &lit}))
	assert.False(t, e.ShouldPair(Manifest{Illuminated: &lit}, Manifest{Illuminated: &lit}))
	assert.False(t, e.ShouldPair(Manifest{Illuminated: nil}, Manifest{Illuminated: &lit}))
}

func TestPhotocurrentDeltaExtractPairIsIlluminatedMinusDark(t *testing.T) {
	e := PhotocurrentDelta{CurrentColumn: "Ids (A)"}
	lit, dark := true, false

	darkTbl := currentTable([]float64{1.0, 1.0})
	litTbl := currentTable([]float64{5.0, 5.0})

	results := e.ExtractPair(darkTbl, litTbl, Manifest{Illuminated: &dark}, Manifest{Illuminated: &lit})
	require.Len(t, results, 1)
	assert.Equal(t, "4", results[0].Value)
}

func TestPhotocurrentDeltaExtractPairFlipsWhenAIsIlluminated(t *testing.T) {
	e := PhotocurrentDelta{CurrentColumn: "Ids (A)"}
	lit, dark := true, false

	litTbl := currentTable([]float64{5.0, 5.0})
	darkTbl := currentTable([]float64{1.0, 1.0})

	results := e.ExtractPair(litTbl, darkTbl, Manifest{Illuminated: &lit}, Manifest{Illuminated: &dark})
	require.Len(t, results, 1)
	assert.Equal(t, "4", results[0].Value)
}
