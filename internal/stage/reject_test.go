package stage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRejectNamesFileByStemAndHash(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, WriteReject(dir, "/raw/run1.txt", "missing chip_group", ts))

	matches, err := filepath.Glob(filepath.Join(dir, "run1-*.reject.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var rec rejectSidecar
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "/raw/run1.txt", rec.SourceFile)
	assert.Equal(t, "missing chip_group", rec.Error)
}

func TestWriteRejectDistinctSourcesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	ts := time.Now()

	require.NoError(t, WriteReject(dir, "/raw/a/run1.txt", "err1", ts))
	require.NoError(t, WriteReject(dir, "/raw/b/run1.txt", "err2", ts))

	matches, err := filepath.Glob(filepath.Join(dir, "run1-*.reject.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
