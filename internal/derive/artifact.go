package derive

import "github.com/joaquim-lab/chipstage/pkg/table"

// metricsSchema is the fixed long-form metrics-artifact schema.
var metricsSchema = []table.ColumnDef{
	{Name: "source_identity", Type: table.TypeString},
	{Name: "chip_group", Type: table.TypeString},
	{Name: "chip_number", Type: table.TypeString},
	{Name: "procedure", Type: table.TypeString},
	{Name: "seq", Type: table.TypeInt},
	{Name: "metric_name", Type: table.TypeString},
	{Name: "metric_category", Type: table.TypeString},
	{Name: "value", Type: table.TypeString},
	{Name: "unit", Type: table.TypeString},
	{Name: "extraction_method", Type: table.TypeString},
	{Name: "extraction_version", Type: table.TypeString},
	{Name: "confidence", Type: table.TypeFloat},
	{Name: "flags", Type: table.TypeString},
}

// BuildMetricsArtifact materializes emitted results as the long-form
// metrics table. Re-running with a changed extraction-version replaces
// only that (metric-name, extraction-version) pair's prior rows — callers
// achieve this by filtering Emitted before calling Build, since the
// artifact itself is always rewritten wholesale.
func BuildMetricsArtifact(rows []Emitted) *table.Table {
	tbl := table.New(metricsSchema, len(rows))
	for i, r := range rows {
		tbl.Columns["source_identity"].SetString(i, r.SourceIdentity)
		tbl.Columns["chip_group"].SetString(i, r.ChipGroup)
		tbl.Columns["chip_number"].SetString(i, r.ChipNumber)
		tbl.Columns["procedure"].SetString(i, r.Procedure)
		tbl.Columns["seq"].SetInt(i, r.Seq)
		tbl.Columns["metric_name"].SetString(i, r.MetricName)
		tbl.Columns["metric_category"].SetString(i, r.MetricCategory)
		tbl.Columns["value"].SetString(i, r.Value)
		tbl.Columns["unit"].SetString(i, r.Unit)
		tbl.Columns["extraction_method"].SetString(i, r.ExtractionMethod)
		tbl.Columns["extraction_version"].SetString(i, r.ExtractionVersion)
		tbl.Columns["confidence"].SetFloat(i, r.Confidence)
		tbl.Columns["flags"].SetString(i, r.Flags)
	}
	return tbl
}

// ReplaceVersioned filters out prior rows sharing (metric-name,
// extraction-version) with any row in fresh, then appends fresh — the
// "changed version string replaces old rows of that pair" rule.
func ReplaceVersioned(prior, fresh []Emitted) []Emitted {
	replaced := make(map[string]bool, len(fresh))
	for _, r := range fresh {
		replaced[r.MetricName+"\x00"+r.ExtractionVersion] = true
	}

	out := make([]Emitted, 0, len(prior)+len(fresh))
	for _, r := range prior {
		if replaced[r.MetricName+"\x00"+r.ExtractionVersion] {
			continue
		}
		out = append(out, r)
	}
	return append(out, fresh...)
}
