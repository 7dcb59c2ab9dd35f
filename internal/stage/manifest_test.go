package stage

import (
	"testing"
	"time"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/joaquim-lab/chipstage/internal/ingest"
	"github.com/joaquim-lab/chipstage/pkg/valuebag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupKeepsLatestEventTimestampPerIdentity(t *testing.T) {
	older := ingest.Event{Identity: "id1", EventTimestamp: time.Unix(100, 0), Status: ingest.StatusOK}
	newer := ingest.Event{Identity: "id1", EventTimestamp: time.Unix(200, 0), Status: ingest.StatusOK}
	other := ingest.Event{Identity: "id2", EventTimestamp: time.Unix(150, 0), Status: ingest.StatusOK}

	out := Dedup([]ingest.Event{older, newer, other})
	require.Len(t, out, 2)

	byIdentity := map[string]ingest.Event{}
	for _, ev := range out {
		byIdentity[ev.Identity] = ev
	}
	assert.True(t, byIdentity["id1"].EventTimestamp.Equal(newer.EventTimestamp))
}

func TestDedupSortsByTimestampThenIdentity(t *testing.T) {
	a := ingest.Event{Identity: "zzz", EventTimestamp: time.Unix(100, 0)}
	b := ingest.Event{Identity: "aaa", EventTimestamp: time.Unix(100, 0)}

	out := Dedup([]ingest.Event{a, b})
	require.Len(t, out, 2)
	assert.Equal(t, "aaa", out[0].Identity)
	assert.Equal(t, "zzz", out[1].Identity)
}

func TestBuildManifestTablePopulatesFixedAndEnrichedColumns(t *testing.T) {
	events := []ingest.Event{
		{
			Identity:       "id1",
			EventTimestamp: time.Unix(100, 0),
			Status:         ingest.StatusOK,
			Procedure:      "IVg",
			RowCount:       5,
			ManifestColumns: map[string]valuebag.Value{
				"chip_group": valuebag.FromString("A1"),
				"wavelength": valuebag.Null(),
			},
		},
	}

	tbl := BuildManifestTable(events, catalog.AliasMap{})
	require.Equal(t, 1, tbl.NumRows)
	assert.Equal(t, "id1", tbl.Columns["identity"].Strs[0])
	assert.Equal(t, int64(5), tbl.Columns["row_count"].Ints[0])
	assert.Equal(t, "A1", tbl.Columns["chip_group"].Strs[0])
	assert.False(t, tbl.Columns["wavelength"].Valid[0])
}

func TestBuildManifestTablePopulatesStartTimeUTC(t *testing.T) {
	start := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	events := []ingest.Event{
		{
			Identity:       "id1",
			EventTimestamp: time.Unix(100, 0),
			Status:         ingest.StatusOK,
			ManifestColumns: map[string]valuebag.Value{
				"start_time_utc": valuebag.FromTime(start),
			},
		},
	}

	tbl := BuildManifestTable(events, catalog.AliasMap{})
	require.True(t, tbl.Columns["start_time_utc"].Valid[0])
	assert.True(t, start.Equal(tbl.Columns["start_time_utc"].Times[0]))
}

func TestManifestSchemaAppendsCatalogAliasesOnce(t *testing.T) {
	aliases := catalog.AliasMap{"chip_group": nil, "custom_field": nil}
	defs := manifestSchema(aliases)

	count := 0
	for _, d := range defs {
		if d.Name == "chip_group" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.True(t, hasColumn(defs, "custom_field"))
}
