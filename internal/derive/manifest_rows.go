package derive

import "github.com/joaquim-lab/chipstage/pkg/table"

// RowsFromManifest extracts the ok-status rows of a manifest table into
// the plain Manifest structs the extractor phases operate over, sparing
// extractors any dependency on the manifest's column-map representation.
func RowsFromManifest(manifest *table.Table) []Manifest {
	statusCol, ok := manifest.Columns["status"]
	if !ok {
		return nil
	}

	var out []Manifest
	for i := 0; i < manifest.NumRows; i++ {
		if !statusCol.Valid[i] || statusCol.Strs[i] != "ok" {
			continue
		}
		out = append(out, Manifest{
			Identity:      stringAt(manifest, "identity", i),
			ChipGroup:     stringAt(manifest, "chip_group", i),
			ChipNumber:    stringAt(manifest, "chip_number", i),
			Procedure:     stringAt(manifest, "procedure", i),
			StartUTC:      timeAt(manifest, "start_time_utc", i),
			PartitionPath: stringAt(manifest, "partition_path", i),
			Illuminated:   boolAt(manifest, "illuminated", i),
		})
	}
	return out
}

func stringAt(tbl *table.Table, col string, row int) string {
	c, ok := tbl.Columns[col]
	if !ok || !c.Valid[row] {
		return ""
	}
	return c.Strs[row]
}

func timeAt(tbl *table.Table, col string, row int) int64 {
	c, ok := tbl.Columns[col]
	if !ok || !c.Valid[row] {
		return 0
	}
	return c.Times[row].UnixNano()
}

func boolAt(tbl *table.Table, col string, row int) *bool {
	c, ok := tbl.Columns[col]
	if !ok || !c.Valid[row] {
		return nil
	}
	switch c.Strs[row] {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
