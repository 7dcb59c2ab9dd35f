package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schema() []ColumnDef {
	return []ColumnDef{
		{Name: "identity", Type: TypeString},
		{Name: "row_count", Type: TypeInt},
		{Name: "measured_at", Type: TypeTimestamp},
	}
}

func TestNewTableStartsAllNull(t *testing.T) {
	tbl := New(schema(), 3)
	require.Equal(t, 3, tbl.NumRows)
	for _, name := range tbl.Order {
		col := tbl.Columns[name]
		for i := 0; i < 3; i++ {
			assert.False(t, col.Valid[i], "column %s row %d should start null", name, i)
		}
	}
}

func TestSetAndAny(t *testing.T) {
	tbl := New(schema(), 1)
	tbl.Columns["identity"].SetString(0, "abc123")
	tbl.Columns["row_count"].SetInt(0, 42)
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tbl.Columns["measured_at"].SetTime(0, ts)

	assert.Equal(t, "abc123", tbl.Columns["identity"].Any(0))
	assert.Equal(t, int64(42), tbl.Columns["row_count"].Any(0))
	assert.Equal(t, ts, tbl.Columns["measured_at"].Any(0))
}

func TestSetNullClearsValidity(t *testing.T) {
	tbl := New(schema(), 1)
	tbl.Columns["row_count"].SetInt(0, 1)
	tbl.Columns["row_count"].SetNull(0)

	assert.False(t, tbl.Columns["row_count"].Valid[0])
	assert.Nil(t, tbl.Columns["row_count"].Any(0))
}

func TestAddColumnIsIdempotent(t *testing.T) {
	tbl := New(schema(), 2)
	c1 := tbl.AddColumn("extra", TypeFloat)
	c2 := tbl.AddColumn("extra", TypeFloat)
	assert.Same(t, c1, c2)
	assert.Equal(t, 4, len(tbl.Order))
}

func TestSupersetChecksTypeAndPresence(t *testing.T) {
	tbl := New(schema(), 1)
	require.NoError(t, tbl.Superset([]ColumnDef{{Name: "identity", Type: TypeString}}))

	err := tbl.Superset([]ColumnDef{{Name: "missing", Type: TypeString}})
	assert.Error(t, err)

	err = tbl.Superset([]ColumnDef{{Name: "identity", Type: TypeInt}})
	assert.Error(t, err)
}

func TestSchemaRoundTripsOrder(t *testing.T) {
	tbl := New(schema(), 0)
	got := tbl.Schema()
	require.Len(t, got, 3)
	assert.Equal(t, "identity", got[0].Name)
	assert.Equal(t, "row_count", got[1].Name)
	assert.Equal(t, "measured_at", got[2].Name)
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tbl := New(schema(), 2)
	tbl.Columns["identity"].SetString(0, "id-one")
	tbl.Columns["row_count"].SetInt(0, 10)
	tbl.Columns["measured_at"].SetTime(0, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	tbl.Columns["identity"].SetNull(1)
	tbl.Columns["row_count"].SetInt(1, 20)
	tbl.Columns["measured_at"].SetTime(1, time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))

	path := dir + "/partition.parquet"
	require.NoError(t, tbl.Write(path, "partition"))

	back, err := Read(path, schema())
	require.NoError(t, err)
	require.Equal(t, 2, back.NumRows)

	assert.True(t, back.Columns["identity"].Valid[0])
	assert.Equal(t, "id-one", back.Columns["identity"].Strs[0])
	assert.False(t, back.Columns["identity"].Valid[1])
	assert.Equal(t, int64(10), back.Columns["row_count"].Ints[0])
	assert.Equal(t, int64(20), back.Columns["row_count"].Ints[1])
}
