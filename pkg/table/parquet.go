package table

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// buildSchema turns a Table schema into a dynamic parquet.Schema: one
// optional leaf per column, named after the catalog/enriched field. The
// catalog is only known at run time, so this builds the schema from a
// parquet.Group node tree instead of a compile-time Go struct.
func buildSchema(name string, schema []ColumnDef) *parquet.Schema {
	group := make(parquet.Group, len(schema))
	for _, def := range schema {
		group[def.Name] = parquet.Optional(leafNode(def.Type))
	}
	return parquet.NewSchema(name, group)
}

func leafNode(t ColumnType) parquet.Node {
	switch t {
	case TypeInt:
		return parquet.Leaf(parquet.Int64Type)
	case TypeFloat, TypeStrictFloat:
		return parquet.Leaf(parquet.DoubleType)
	case TypeBool:
		return parquet.Leaf(parquet.BooleanType)
	case TypeString:
		return parquet.String()
	case TypeTimestamp:
		return parquet.Timestamp(parquet.Microsecond)
	default:
		return parquet.String()
	}
}

// rowMap renders row i of the table as the map[string]interface{}
// representation parquet.Schema.Deconstruct accepts for dynamic (Group)
// schemas; a nil entry encodes a typed null for an optional leaf.
func (t *Table) rowMap(i int) map[string]interface{} {
	row := make(map[string]interface{}, len(t.Order))
	for _, name := range t.Order {
		col := t.Columns[name]
		row[name] = col.Any(i)
	}
	return row
}

// Write atomically writes the table to path as a single Parquet file: the
// data lands in a temp file in the same directory, is fsync'd, then renamed
// into place. This is the commit-phase primitive shared by partitions,
// the manifest, histories, and the metrics artifact.
func (t *Table) Write(path, schemaName string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create partition dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+uuid.NewString()+"-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	schema := buildSchema(schemaName, t.Schema())
	writer := parquet.NewWriter(tmp, schema,
		parquet.Compression(&parquet.Snappy),
	)

	for i := 0; i < t.NumRows; i++ {
		if _, err := writer.Write(t.rowMap(i)); err != nil {
			tmp.Close()
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Read loads a Parquet file written by Write back into a Table, using the
// caller-supplied schema (the procedure's declared+enriched columns) to
// decide each column's Go-side type.
func Read(path string, schema []ColumnDef) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partition: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat partition: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewGenericReader[map[string]interface{}](f, pf.Schema())
	defer reader.Close()

	tbl := New(schema, int(reader.NumRows()))
	rows := make([]map[string]interface{}, 128)
	idx := 0
	for {
		n, err := reader.Read(rows)
		for i := 0; i < n; i++ {
			assignRow(tbl, idx, rows[i])
			idx++
		}
		if err != nil {
			break // io.EOF or a genuine read error both end the loop
		}
	}
	return tbl, nil
}

func assignRow(t *Table, row int, values map[string]interface{}) {
	for _, name := range t.Order {
		col := t.Columns[name]
		v, ok := values[name]
		if !ok || v == nil {
			col.SetNull(row)
			continue
		}
		switch col.Type {
		case TypeInt:
			col.SetInt(row, toInt64(v))
		case TypeFloat, TypeStrictFloat:
			col.SetFloat(row, toFloat64(v))
		case TypeBool:
			col.SetBool(row, v.(bool))
		case TypeString:
			col.SetString(row, v.(string))
		case TypeTimestamp:
			if tm, ok := v.(time.Time); ok {
				col.SetTime(row, tm)
			} else {
				col.SetNull(row)
			}
		}
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
