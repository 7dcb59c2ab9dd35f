package ingest

import (
	"fmt"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/pkg/table"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
)

// Critical parameters are required in every mode; their absence always
// rejects the file.
const (
	FieldChipGroup  = "chip_group"
	FieldChipNumber = "chip_number"
)

// ValidationResult carries the per-file error/warning counts the event
// record reports, plus the terminal rejection (if any).
type ValidationResult struct {
	Errors   int
	Warnings int
	Rejected bool
	Reason   string
}

// Validate checks required parameters, required metadata, the two
// critical parameters, and required data columns. In strict mode a missing
// required field is an error that rejects the file; in permissive mode it
// is only a counted warning and the row proceeds with a typed null.
func Validate(spec catalog.ProcSpec, combined valuebag.Bag, aliases catalog.AliasMap, dataTable *table.Table, strict bool) ValidationResult {
	var res ValidationResult

	for _, critical := range []string{FieldChipGroup, FieldChipNumber} {
		if _, ok := ResolveField(critical, combined, aliases); !ok {
			res.Rejected = true
			res.Reason = fmt.Sprintf("critical parameter '%s' not found", critical)
			return res
		}
	}

	requireField := func(section, name string) {
		if _, ok := ResolveField(name, combined, aliases); ok {
			return
		}
		if strict {
			res.Errors++
			if !res.Rejected {
				res.Rejected = true
				res.Reason = fmt.Sprintf("%s: required field '%s' not found", section, name)
			}
		} else {
			res.Warnings++
		}
	}

	for name, f := range spec.Parameters {
		if f.Required {
			requireField("Parameters", name)
		}
	}
	for name, f := range spec.Metadata {
		if f.Required {
			requireField("Metadata", name)
		}
	}

	for name, f := range spec.Data {
		if !f.Required {
			continue
		}
		col, ok := dataTable.Columns[name]
		if ok && anyValid(col) {
			continue
		}
		if strict {
			res.Errors++
			if !res.Rejected {
				res.Rejected = true
				res.Reason = fmt.Sprintf("Data: required column '%s' not found", name)
			}
		} else {
			res.Warnings++
		}
	}

	return res
}

func anyValid(c *table.Column) bool {
	for _, v := range c.Valid {
		if v {
			return true
		}
	}
	return false
}
