package ingest

import (
	"fmt"
	"time"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
)

// EnrichedAttrs is the fixed set of per-measurement attributes added to
// every row. Illuminated is nil when the laser-source voltage could
// not be determined.
type EnrichedAttrs struct {
	Identity         string
	Procedure        string
	StartUTC         time.Time
	SourceFilePath   string
	Illuminated      *bool
	Wavelength       *float64
	SourceVoltage    *float64
	ChipGroup        string
	ChipNumber       string
	SampleID         string
	ProcedureVersion string
}

// illuminationThreshold is the laser-source-voltage cutoff: below it the
// measurement is considered dark.
const illuminationThreshold = 0.1

// DeriveEnrichedAttrs resolves the enriched attribute set from the
// combined parameter/metadata bag via the global alias map.
func DeriveEnrichedAttrs(combined valuebag.Bag, aliases catalog.AliasMap, identity, procedure string, startUTC time.Time, sourcePath string) (EnrichedAttrs, []string) {
	var warnings []string
	attrs := EnrichedAttrs{
		Identity:       identity,
		Procedure:      procedure,
		StartUTC:       startUTC,
		SourceFilePath: sourcePath,
	}

	if v, ok := ResolveField(FieldChipGroup, combined, aliases); ok {
		attrs.ChipGroup = v.AsString()
	}
	if v, ok := ResolveField(FieldChipNumber, combined, aliases); ok {
		attrs.ChipNumber = v.AsString()
	}
	if v, ok := ResolveField("sample_id", combined, aliases); ok {
		attrs.SampleID = v.AsString()
	}
	if v, ok := ResolveField("procedure_version", combined, aliases); ok {
		attrs.ProcedureVersion = v.AsString()
	}
	if v, ok := ResolveField("wavelength", combined, aliases); ok {
		if f, ok2 := numericValue(v); ok2 {
			attrs.Wavelength = &f
		}
	}

	voltage, haveVoltage := ResolveField("source_voltage", combined, aliases)
	if haveVoltage {
		if f, ok2 := numericValue(voltage); ok2 {
			attrs.SourceVoltage = &f
			illuminated := f >= illuminationThreshold
			attrs.Illuminated = &illuminated
		}
	}
	if attrs.Illuminated == nil {
		warnings = append(warnings, "illumination flag undetermined: source voltage missing or non-numeric")
	}

	return attrs, warnings
}

func numericValue(v valuebag.Value) (float64, bool) {
	switch v.Kind {
	case valuebag.KindFloat:
		return v.Flt, true
	case valuebag.KindInt:
		return float64(v.Int), true
	case valuebag.KindString:
		if coerced, ok := catalog.Coerce(v.Str, table.TypeFloat); ok {
			return coerced.(float64), true
		}
	}
	return 0, false
}

// ApplyEnrichment appends the enriched columns to tbl, materialized
// identically on every row — the enriched attributes describe the whole
// measurement, not per-row data.
func ApplyEnrichment(tbl *table.Table, attrs EnrichedAttrs) {
	n := tbl.NumRows

	identity := tbl.AddColumn("identity", table.TypeString)
	procedure := tbl.AddColumn("procedure", table.TypeString)
	startTime := tbl.AddColumn("start_time_utc", table.TypeTimestamp)
	sourcePath := tbl.AddColumn("source_file_path", table.TypeString)
	illuminated := tbl.AddColumn("illuminated", table.TypeBool)
	wavelength := tbl.AddColumn("wavelength", table.TypeFloat)
	sourceVoltage := tbl.AddColumn("source_voltage", table.TypeFloat)
	chipGroup := tbl.AddColumn("chip_group", table.TypeString)
	chipNumber := tbl.AddColumn("chip_number", table.TypeString)
	sampleID := tbl.AddColumn("sample_id", table.TypeString)
	procedureVersion := tbl.AddColumn("procedure_version", table.TypeString)

	for i := 0; i < n; i++ {
		identity.SetString(i, attrs.Identity)
		procedure.SetString(i, attrs.Procedure)
		startTime.SetTime(i, attrs.StartUTC)
		sourcePath.SetString(i, attrs.SourceFilePath)
		chipGroup.SetString(i, attrs.ChipGroup)
		chipNumber.SetString(i, attrs.ChipNumber)
		sampleID.SetString(i, attrs.SampleID)
		procedureVersion.SetString(i, attrs.ProcedureVersion)

		if attrs.Illuminated != nil {
			illuminated.SetBool(i, *attrs.Illuminated)
		} else {
			illuminated.SetNull(i)
		}
		if attrs.Wavelength != nil {
			wavelength.SetFloat(i, *attrs.Wavelength)
		} else {
			wavelength.SetNull(i)
		}
		if attrs.SourceVoltage != nil {
			sourceVoltage.SetFloat(i, *attrs.SourceVoltage)
		} else {
			sourceVoltage.SetNull(i)
		}
	}
}

// ManifestColumns projects the attribute set into the flat manifest-row
// column set, plus the global alias map's own recognized columns.
func ManifestColumns(attrs EnrichedAttrs, combined valuebag.Bag, aliases catalog.AliasMap) map[string]valuebag.Value {
	out := make(map[string]valuebag.Value)
	for canonical := range aliases {
		if v, ok := ResolveField(canonical, combined, aliases); ok {
			out[canonical] = v
		}
	}
	for name, attr := range map[string]interface{}{
		"identity":          attrs.Identity,
		"procedure":         attrs.Procedure,
		"source_file_path":  attrs.SourceFilePath,
		"chip_group":        attrs.ChipGroup,
		"chip_number":       attrs.ChipNumber,
		"sample_id":         attrs.SampleID,
		"procedure_version": attrs.ProcedureVersion,
	} {
		out[name] = valuebag.FromString(fmt.Sprint(attr))
	}
	out["start_time_utc"] = valuebag.FromTime(attrs.StartUTC)

	if attrs.Illuminated != nil {
		out["illuminated"] = valuebag.FromBool(*attrs.Illuminated)
	} else {
		out["illuminated"] = valuebag.Null()
	}
	if attrs.Wavelength != nil {
		out["wavelength"] = valuebag.FromFloat(*attrs.Wavelength)
	} else {
		out["wavelength"] = valuebag.Null()
	}
	if attrs.SourceVoltage != nil {
		out["source_voltage"] = valuebag.FromFloat(*attrs.SourceVoltage)
	} else {
		out["source_voltage"] = valuebag.Null()
	}

	return out
}
