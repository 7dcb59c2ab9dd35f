// Package table implements the in-memory columnar batch shared by the
// ingester, the metric pipeline, and the parquet codec: one typed column
// per schema field, a shared row count, and a per-column validity bitmap so
// "missing declared column" can be materialized as typed nulls rather than
// zero values. The committed schema is always a superset of the
// procedure's declared columns.
package table

import (
	"fmt"
	"time"
)

// ColumnType is the declared/coerced type of one column.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeFloat
	TypeStrictFloat
	TypeBool
	TypeString
	TypeTimestamp
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeStrictFloat:
		return "float_no_unit"
	case TypeBool:
		return "bool"
	case TypeString:
		return "str"
	case TypeTimestamp:
		return "datetime"
	default:
		return "unknown"
	}
}

// ParseColumnType maps the catalog's short type names to ColumnType.
func ParseColumnType(name string) (ColumnType, bool) {
	switch name {
	case "int":
		return TypeInt, true
	case "float":
		return TypeFloat, true
	case "float_no_unit":
		return TypeStrictFloat, true
	case "bool":
		return TypeBool, true
	case "str":
		return TypeString, true
	case "datetime":
		return TypeTimestamp, true
	default:
		return 0, false
	}
}

// Column is one typed, nullable column of a Table.
type Column struct {
	Name  string
	Type  ColumnType
	Ints  []int64
	Flts  []float64
	Bools []bool
	Strs  []string
	Times []time.Time
	// Valid[i] == false means the value at row i is a typed null; the
	// underlying slot still exists (zero value) but must not be read.
	Valid []bool
}

func newColumn(name string, t ColumnType, n int) *Column {
	c := &Column{Name: name, Type: t, Valid: make([]bool, n)}
	switch t {
	case TypeInt:
		c.Ints = make([]int64, n)
	case TypeFloat, TypeStrictFloat:
		c.Flts = make([]float64, n)
	case TypeBool:
		c.Bools = make([]bool, n)
	case TypeString:
		c.Strs = make([]string, n)
	case TypeTimestamp:
		c.Times = make([]time.Time, n)
	}
	return c
}

// SetNull marks row i as a typed null.
func (c *Column) SetNull(i int) { c.Valid[i] = false }

// SetInt/SetFloat/SetBool/SetString/SetTime set row i and mark it valid.
func (c *Column) SetInt(i int, v int64)      { c.Ints[i] = v; c.Valid[i] = true }
func (c *Column) SetFloat(i int, v float64)  { c.Flts[i] = v; c.Valid[i] = true }
func (c *Column) SetBool(i int, v bool)      { c.Bools[i] = v; c.Valid[i] = true }
func (c *Column) SetString(i int, v string)  { c.Strs[i] = v; c.Valid[i] = true }
func (c *Column) SetTime(i int, v time.Time) { c.Times[i] = v; c.Valid[i] = true }

// Any returns the value at row i as an interface{}, or nil if null. Used by
// the parquet codec and by extractors that iterate generically.
func (c *Column) Any(i int) interface{} {
	if !c.Valid[i] {
		return nil
	}
	switch c.Type {
	case TypeInt:
		return c.Ints[i]
	case TypeFloat, TypeStrictFloat:
		return c.Flts[i]
	case TypeBool:
		return c.Bools[i]
	case TypeString:
		return c.Strs[i]
	case TypeTimestamp:
		return c.Times[i]
	default:
		return nil
	}
}

// Table is a named, ordered collection of equal-length columns.
type Table struct {
	Order   []string // column order, for deterministic writes
	Columns map[string]*Column
	NumRows int
}

// New creates an empty table with the given schema and row count; every
// column starts all-null. Missing declared columns are appended as
// all-null columns of the declared type.
func New(schema []ColumnDef, numRows int) *Table {
	t := &Table{Columns: make(map[string]*Column, len(schema)), NumRows: numRows}
	for _, def := range schema {
		t.Order = append(t.Order, def.Name)
		t.Columns[def.Name] = newColumn(def.Name, def.Type, numRows)
	}
	return t
}

// ColumnDef names one column of a schema.
type ColumnDef struct {
	Name string
	Type ColumnType
}

// HasColumn reports whether the table declares a column by name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok
}

// AddColumn appends a new all-null column, used when enrichment or
// alignment needs a column the initial schema didn't include.
func (t *Table) AddColumn(name string, typ ColumnType) *Column {
	if c, ok := t.Columns[name]; ok {
		return c
	}
	c := newColumn(name, typ, t.NumRows)
	t.Order = append(t.Order, name)
	t.Columns[name] = c
	return c
}

// Schema returns the table's column definitions in order.
func (t *Table) Schema() []ColumnDef {
	defs := make([]ColumnDef, 0, len(t.Order))
	for _, name := range t.Order {
		defs = append(defs, ColumnDef{Name: name, Type: t.Columns[name].Type})
	}
	return defs
}

// Superset reports whether t's schema contains every column in required,
// with a matching type. This is the manifest-superset invariant.
func (t *Table) Superset(required []ColumnDef) error {
	for _, req := range required {
		col, ok := t.Columns[req.Name]
		if !ok {
			return fmt.Errorf("missing required column %q", req.Name)
		}
		if col.Type != req.Type {
			return fmt.Errorf("column %q has type %s, want %s", req.Name, col.Type, req.Type)
		}
	}
	return nil
}
