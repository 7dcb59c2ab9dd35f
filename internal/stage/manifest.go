package stage

import (
	"sort"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/internal/ingest"
	"github.com/joaquim-lab/chipstage/pkg/table"
)

// Dedup collapses events to one row per identity, keeping the row with the
// maximum event-timestamp — the "latest wins" rule. Unlike the teacher's
// streaming LRU/TTL cache, this is a one-shot batch reduction over a
// bounded set of event files, so no eviction policy is needed — every
// event fits in memory.
func Dedup(events []ingest.Event) []ingest.Event {
	latest := make(map[string]ingest.Event, len(events))
	for _, ev := range events {
		prior, ok := latest[ev.Identity]
		if !ok || ev.EventTimestamp.After(prior.EventTimestamp) {
			latest[ev.Identity] = ev
		}
	}

	out := make([]ingest.Event, 0, len(latest))
	for _, ev := range latest {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EventTimestamp.Equal(out[j].EventTimestamp) {
			return out[i].EventTimestamp.Before(out[j].EventTimestamp)
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

// manifestSchema is the fixed event-column portion of the manifest; the
// flat manifest-column projection (one column per ManifestColumnMap
// canonical field) is appended dynamically from the catalog's aliases.
func manifestSchema(aliases catalog.AliasMap) []table.ColumnDef {
	defs := []table.ColumnDef{
		{Name: "identity", Type: table.TypeString},
		{Name: "event_timestamp", Type: table.TypeTimestamp},
		{Name: "start_time_utc", Type: table.TypeTimestamp},
		{Name: "status", Type: table.TypeString},
		{Name: "procedure", Type: table.TypeString},
		{Name: "row_count", Type: table.TypeInt},
		{Name: "partition_path", Type: table.TypeString},
		{Name: "source_file_path", Type: table.TypeString},
		{Name: "date_origin", Type: table.TypeString},
		{Name: "validation_errors", Type: table.TypeInt},
		{Name: "validation_warnings", Type: table.TypeInt},
		{Name: "reject_reason", Type: table.TypeString},
		// Always-present enriched columns: these are recognized manifest
		// columns regardless of whether the catalog's alias map happens
		// to mention them.
		{Name: "chip_group", Type: table.TypeString},
		{Name: "chip_number", Type: table.TypeString},
		{Name: "sample_id", Type: table.TypeString},
		{Name: "procedure_version", Type: table.TypeString},
		{Name: "illuminated", Type: table.TypeString},
		{Name: "wavelength", Type: table.TypeString},
		{Name: "source_voltage", Type: table.TypeString},
	}
	canonical := make([]string, 0, len(aliases))
	for name := range aliases {
		canonical = append(canonical, name)
	}
	sort.Strings(canonical)
	for _, name := range canonical {
		if hasColumn(defs, name) {
			continue
		}
		defs = append(defs, table.ColumnDef{Name: name, Type: table.TypeString})
	}
	return defs
}

func hasColumn(defs []table.ColumnDef, name string) bool {
	for _, d := range defs {
		if d.Name == name {
			return true
		}
	}
	return false
}

// BuildManifestTable materializes the deduplicated, sorted event set as
// the single manifest table written by the coordinator's finalization step.
func BuildManifestTable(events []ingest.Event, aliases catalog.AliasMap) *table.Table {
	schema := manifestSchema(aliases)
	tbl := table.New(schema, len(events))

	for i, ev := range events {
		tbl.Columns["identity"].SetString(i, ev.Identity)
		tbl.Columns["event_timestamp"].SetTime(i, ev.EventTimestamp)
		tbl.Columns["status"].SetString(i, string(ev.Status))
		tbl.Columns["procedure"].SetString(i, ev.Procedure)
		tbl.Columns["row_count"].SetInt(i, int64(ev.RowCount))
		tbl.Columns["partition_path"].SetString(i, ev.PartitionPath)
		tbl.Columns["source_file_path"].SetString(i, ev.SourceFilePath)
		tbl.Columns["date_origin"].SetString(i, string(ev.DateOrigin))
		tbl.Columns["validation_errors"].SetInt(i, int64(ev.ValidationErrors))
		tbl.Columns["validation_warnings"].SetInt(i, int64(ev.ValidationWarnings))
		tbl.Columns["reject_reason"].SetString(i, ev.RejectReason)

		for name, v := range ev.ManifestColumns {
			col, ok := tbl.Columns[name]
			if !ok {
				continue
			}
			if v.IsNull() {
				col.SetNull(i)
				continue
			}
			if col.Type == table.TypeTimestamp {
				col.SetTime(i, v.Time)
				continue
			}
			col.SetString(i, v.AsString())
		}
	}
	return tbl
}
