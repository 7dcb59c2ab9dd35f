// Package history implements C4, the per-chip history builder: filter the
// manifest to one chip's ok-status rows, sort with a deterministic
// tiebreak, assign a dense sequence number, and attach the staged
// partition path.
package history

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/joaquim-lab/chipstage/pkg/table"
)

// ChipID identifies one physical device by its two critical parameters.
type ChipID struct {
	Group  string
	Number string
}

// FileName is the history artifact's path under
// <stage-root>/chip_histories/.
func (c ChipID) FileName() string {
	return fmt.Sprintf("%s%s_history.parquet", c.Group, c.Number)
}

// Build filters manifest to one chip's ok rows, sorts by
// (start-timestamp-UTC, identity), and assigns 1..N sequence numbers. The
// identity tiebreak is lexicographic but deterministic, so repeated runs
// over an unchanged manifest reproduce the same order.
func Build(manifest *table.Table, chip ChipID) (*table.Table, error) {
	idx, err := rowsForChip(manifest, chip)
	if err != nil {
		return nil, err
	}

	sort.Slice(idx, func(a, b int) bool {
		ra, rb := idx[a], idx[b]
		tsA := manifest.Columns["start_time_utc"].Times[ra]
		tsB := manifest.Columns["start_time_utc"].Times[rb]
		if !tsA.Equal(tsB) {
			return tsA.Before(tsB)
		}
		return manifest.Columns["identity"].Strs[ra] < manifest.Columns["identity"].Strs[rb]
	})

	schema := append([]table.ColumnDef{{Name: "seq", Type: table.TypeInt}}, manifest.Schema()...)
	out := table.New(schema, len(idx))

	for seq, row := range idx {
		out.Columns["seq"].SetInt(seq, int64(seq+1))
		for _, name := range manifest.Order {
			copyCell(manifest.Columns[name], out.Columns[name], row, seq)
		}
	}
	return out, nil
}

func rowsForChip(manifest *table.Table, chip ChipID) ([]int, error) {
	statusCol, ok := manifest.Columns["status"]
	if !ok {
		return nil, fmt.Errorf("manifest missing status column")
	}
	groupCol, ok := manifest.Columns["chip_group"]
	if !ok {
		return nil, fmt.Errorf("manifest missing chip_group column")
	}
	numberCol, ok := manifest.Columns["chip_number"]
	if !ok {
		return nil, fmt.Errorf("manifest missing chip_number column")
	}

	var idx []int
	for i := 0; i < manifest.NumRows; i++ {
		if !statusCol.Valid[i] || statusCol.Strs[i] != "ok" {
			continue
		}
		if !groupCol.Valid[i] || groupCol.Strs[i] != chip.Group {
			continue
		}
		if !numberCol.Valid[i] || numberCol.Strs[i] != chip.Number {
			continue
		}
		idx = append(idx, i)
	}
	return idx, nil
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

// ChipsIn enumerates every distinct (chip_group, chip_number) pair present
// in the manifest's ok rows, for "build all chips" callers.
func ChipsIn(manifest *table.Table) []ChipID {
	groupCol, gok := manifest.Columns["chip_group"]
	numberCol, nok := manifest.Columns["chip_number"]
	statusCol, sok := manifest.Columns["status"]
	if !gok || !nok || !sok {
		return nil
	}

	seen := make(map[ChipID]bool)
	var chips []ChipID
	for i := 0; i < manifest.NumRows; i++ {
		if !statusCol.Valid[i] || statusCol.Strs[i] != "ok" {
			continue
		}
		if !groupCol.Valid[i] || !numberCol.Valid[i] {
			continue
		}
		c := ChipID{Group: groupCol.Strs[i], Number: numberCol.Strs[i]}
		if !seen[c] {
			seen[c] = true
			chips = append(chips, c)
		}
	}
	sort.Slice(chips, func(i, j int) bool {
		if chips[i].Group != chips[j].Group {
			return chips[i].Group < chips[j].Group
		}
		return chips[i].Number < chips[j].Number
	})
	return chips
}

// Write commits a chip's history table to
// <stage-root>/chip_histories/<group><number>_history.parquet.
func Write(historiesDir string, chip ChipID, tbl *table.Table) error {
	path := filepath.Join(historiesDir, chip.FileName())
	return tbl.Write(path, "history")
}
