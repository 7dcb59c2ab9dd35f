package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityIsDeterministic(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id1 := Identity("data/run.txt", start)
	id2 := Identity("data/run.txt", start)
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
}

func TestIdentityChangesWithPathOrTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	base := Identity("data/run.txt", start)
	otherPath := Identity("data/run2.txt", start)
	otherTime := Identity("data/run.txt", start.Add(time.Second))

	assert.NotEqual(t, base, otherPath)
	assert.NotEqual(t, base, otherTime)
}

func TestPartitionPathUsesLocalDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 2026-03-01T23:30:00Z is still 2026-03-01 in UTC but already
	// 2026-03-01T20:30:00-03:00 local — same calendar day here, so pick a
	// time that actually crosses midnight locally.
	start := time.Date(2026, 3, 2, 2, 30, 0, 0, time.UTC)
	path := PartitionPath("/stage", "IVg", start, loc, "abc123")

	assert.Contains(t, path, "proc=IVg")
	assert.Contains(t, path, "date=2026-03-01")
	assert.Contains(t, path, "run_id=abc123")
	assert.Contains(t, path, "part-000.parquet")
}

func TestDateFromPathISOFormat(t *testing.T) {
	tm, ok := dateFromPath("/raw/2026-03-05/run.txt")
	require.True(t, ok)
	assert.Equal(t, 2026, tm.Year())
	assert.Equal(t, time.March, tm.Month())
	assert.Equal(t, 5, tm.Day())
}

func TestDateFromPathCompactFormat(t *testing.T) {
	tm, ok := dateFromPath("/raw/20260305_run.txt")
	require.True(t, ok)
	assert.Equal(t, 2026, tm.Year())
}

func TestDateFromPathNoMatch(t *testing.T) {
	_, ok := dateFromPath("/raw/run.txt")
	assert.False(t, ok)
}
