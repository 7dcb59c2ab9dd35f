package derive

import "github.com/joaquim-lab/chipstage/pkg/table"

// EnrichHistory widens a chip history with one column per selected metric
// name, joined on identity. Where a given (identity, metric-name) has no
// value in the metrics artifact, the joined column is null. The input
// history is never mutated; a new table is returned — enriched histories
// are written to a separate directory, and regular histories are never
// mutated.
func EnrichHistory(history, metrics *table.Table, metricNames []string) *table.Table {
	byIdentityMetric := indexMetrics(metrics, metricNames)

	schema := append(append([]table.ColumnDef{}, history.Schema()...), metricColumnDefs(metricNames)...)
	out := table.New(schema, history.NumRows)

	identityCol := history.Columns["identity"]
	for i := 0; i < history.NumRows; i++ {
		for _, name := range history.Order {
			copyCell(history.Columns[name], out.Columns[name], i, i)
		}
		if identityCol == nil || !identityCol.Valid[i] {
			continue
		}
		identity := identityCol.Strs[i]
		for _, metric := range metricNames {
			col := out.Columns[metricColumnName(metric)]
			if value, ok := byIdentityMetric[identity][metric]; ok {
				col.SetString(i, value)
			} else {
				col.SetNull(i)
			}
		}
	}
	return out
}

func metricColumnName(metric string) string { return "metric_" + metric }

func metricColumnDefs(metricNames []string) []table.ColumnDef {
	defs := make([]table.ColumnDef, 0, len(metricNames))
	for _, m := range metricNames {
		defs = append(defs, table.ColumnDef{Name: metricColumnName(m), Type: table.TypeString})
	}
	return defs
}

func indexMetrics(metrics *table.Table, wanted []string) map[string]map[string]string {
	want := make(map[string]bool, len(wanted))
	for _, m := range wanted {
		want[m] = true
	}

	idCol := metrics.Columns["source_identity"]
	nameCol := metrics.Columns["metric_name"]
	valCol := metrics.Columns["value"]

	out := make(map[string]map[string]string)
	for i := 0; i < metrics.NumRows; i++ {
		if !idCol.Valid[i] || !nameCol.Valid[i] {
			continue
		}
		name := nameCol.Strs[i]
		if !want[name] {
			continue
		}
		id := idCol.Strs[i]
		if out[id] == nil {
			out[id] = make(map[string]string)
		}
		value := ""
		if valCol.Valid[i] {
			value = valCol.Strs[i]
		}
		out[id][name] = value
	}
	return out
}

func copyCell(src, dst *table.Column, srcRow, dstRow int) {
	if !src.Valid[srcRow] {
		dst.SetNull(dstRow)
		return
	}
	switch src.Type {
	case table.TypeInt:
		dst.SetInt(dstRow, src.Ints[srcRow])
	case table.TypeFloat, table.TypeStrictFloat:
		dst.SetFloat(dstRow, src.Flts[srcRow])
	case table.TypeBool:
		dst.SetBool(dstRow, src.Bools[srcRow])
	case table.TypeString:
		dst.SetString(dstRow, src.Strs[srcRow])
	case table.TypeTimestamp:
		dst.SetTime(dstRow, src.Times[srcRow])
	}
}
