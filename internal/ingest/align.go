package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
)

// AlignColumns maps the raw header to the procedure's declared data
// columns using a three-tier matcher, applied in order until a
// match is found:
//
//  1. normalized exact match
//  2. regex alias (catalog-declared, case-insensitive)
//  3. upper-case fallback against the canonical name's space-stripped form
//
// Unmatched source columns are returned as warnings; the caller decides
// whether to keep them (permissive) or drop them (strict-columns).
func AlignColumns(header []string, spec catalog.ProcSpec, aliases catalog.AliasMap) (mapping map[int]string, warnings []string) {
	mapping = make(map[int]string, len(header))
	declared := spec.DataColumns()

	for idx, src := range header {
		normSrc := valuebag.NormalizeKey(src)

		if name := matchExact(normSrc, declared); name != "" {
			mapping[idx] = name
			continue
		}
		if name := matchAlias(normSrc, declared, aliases); name != "" {
			mapping[idx] = name
			continue
		}
		if name := matchUpperFallback(src, declared); name != "" {
			mapping[idx] = name
			continue
		}

		warnings = append(warnings, fmt.Sprintf("unmapped source column %q", src))
		mapping[idx] = "" // caller decides keep-as-is vs. drop
	}
	return mapping, warnings
}

func coerceValue(raw string, typ table.ColumnType) (interface{}, bool) {
	return catalog.Coerce(raw, typ)
}

func matchExact(normSrc string, declared []table.ColumnDef) string {
	for _, def := range declared {
		if valuebag.NormalizeKey(def.Name) == normSrc {
			return def.Name
		}
	}
	return ""
}

func matchAlias(normSrc string, declared []table.ColumnDef, aliases catalog.AliasMap) string {
	for _, def := range declared {
		for _, re := range aliases[def.Name] {
			if re.MatchString(normSrc) {
				return def.Name
			}
		}
	}
	return ""
}

func matchUpperFallback(src string, declared []table.ColumnDef) string {
	upperSrc := strings.ToUpper(strings.ReplaceAll(src, " ", ""))
	for _, def := range declared {
		canonStripped := strings.ToUpper(strings.ReplaceAll(def.Name, " ", ""))
		if upperSrc == canonStripped {
			return def.Name
		}
	}
	return ""
}

// BuildDataTable casts the raw rows into a Table whose schema is the
// procedure's declared data columns: mapped source columns are coerced to
// their declared type, unmatched declared columns are left all-null, and
// (in permissive mode) unmatched source columns are appended as extra
// string columns instead of being dropped.
func BuildDataTable(raw *RawRecord, spec catalog.ProcSpec, mapping map[int]string, strictColumns bool) (*table.Table, []string) {
	var warnings []string
	n := len(raw.Rows)
	tbl := table.New(spec.DataColumns(), n)

	for colIdx, canonical := range mapping {
		if canonical == "" {
			if strictColumns {
				continue
			}
			name := raw.Header[colIdx]
			col := tbl.AddColumn(name, table.TypeString)
			for row := 0; row < n; row++ {
				if colIdx < len(raw.Rows[row]) {
					col.SetString(row, raw.Rows[row][colIdx])
				}
			}
			continue
		}

		field := spec.Data[canonical]
		col := tbl.Columns[canonical]
		for row := 0; row < n; row++ {
			if colIdx >= len(raw.Rows[row]) {
				continue
			}
			cell := raw.Rows[row][colIdx]
			if cell == "" {
				continue
			}
			value, ok := coerceValue(cell, field.Type)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("row %d: could not coerce %q as %s for column %q", row, cell, field.Type, canonical))
				continue
			}
			setColumnValue(col, row, field.Type, value)
		}
	}
	return tbl, warnings
}

func setColumnValue(col *table.Column, row int, typ table.ColumnType, value interface{}) {
	switch typ {
	case table.TypeInt:
		col.SetInt(row, value.(int64))
	case table.TypeFloat, table.TypeStrictFloat:
		col.SetFloat(row, value.(float64))
	case table.TypeBool:
		col.SetBool(row, value.(bool))
	case table.TypeString:
		col.SetString(row, value.(string))
	case table.TypeTimestamp:
		col.SetTime(row, value.(time.Time))
	}
}
