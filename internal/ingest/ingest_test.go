package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joaquim-lab/chipstage/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ivgCatalog = `
procedures:
  IVg:
    Parameters:
      chip_group: str
      chip_number: str
      source_voltage: {type: float, required: false}
    Metadata:
      sample_id: str
    Data:
      Vg (V): float
      Ids (A): float
ManifestColumnMap:
  chip_group:
    - "^chip[_ ]?group$"
  chip_number:
    - "^chip[_ ]?number$"
  sample_id:
    - "^sample[_ ]?id$"
  source_voltage:
    - "^source[_ ]?voltage$"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestHappyPathCommitsPartition(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.Parse([]byte(ivgCatalog), false)
	require.NoError(t, err)

	path := writeFile(t, dir, "run1.txt", `# Procedure: IVg
# Parameters:
# Chip Group: A1
# Chip Number: 3
# Source Voltage: 1.5
# Metadata:
# Sample ID: S-001
# Data:
Vg (V),Ids (A)
0.0,1e-9
0.1,2e-9
`)

	cfg := Config{StageRoot: dir + "/stage", LocalTZ: time.UTC}
	result, err := Ingest(path, cat, cfg)
	require.NoError(t, err)

	assert.Equal(t, StatusOK, result.Event.Status)
	assert.NotEmpty(t, result.Event.Identity)
	assert.Equal(t, 2, result.Event.RowCount)

	_, statErr := os.Stat(result.Event.PartitionPath)
	assert.NoError(t, statErr)
}

func TestIngestRejectsMissingCriticalParameter(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.Parse([]byte(ivgCatalog), false)
	require.NoError(t, err)

	path := writeFile(t, dir, "run2.txt", `# Procedure: IVg
# Data:
Vg (V),Ids (A)
0.0,1e-9
`)

	cfg := Config{StageRoot: dir + "/stage", LocalTZ: time.UTC}
	result, err := Ingest(path, cat, cfg)
	require.Error(t, err)
	assert.Equal(t, StatusRejected, result.Event.Status)
	assert.Contains(t, result.Event.RejectReason, "chip_group")
}

func TestIngestUnknownProcedureStrictRejects(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.Parse([]byte(ivgCatalog), true)
	require.NoError(t, err)

	path := writeFile(t, dir, "run3.txt", `# Procedure: Unknown
# Parameters:
# Chip Group: A1
# Chip Number: 3
# Data:
Vg (V)
0.0
`)

	cfg := Config{StageRoot: dir + "/stage", LocalTZ: time.UTC}
	result, err := Ingest(path, cat, cfg)
	require.Error(t, err)
	assert.Equal(t, StatusRejected, result.Event.Status)
}

func TestIngestSkipsAlreadyCommittedPartitionWithoutForce(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.Parse([]byte(ivgCatalog), false)
	require.NoError(t, err)

	content := `# Procedure: IVg
# Parameters:
# Chip Group: A1
# Chip Number: 3
# Data:
Vg (V),Ids (A)
0.0,1e-9
`
	path := writeFile(t, dir, "run4.txt", content)
	cfg := Config{StageRoot: dir + "/stage", LocalTZ: time.UTC}

	first, err := Ingest(path, cat, cfg)
	require.NoError(t, err)
	require.Equal(t, StatusOK, first.Event.Status)

	second, err := Ingest(path, cat, cfg)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Event.Status)
}

func TestIngestIdentityStableAcrossReruns(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.Parse([]byte(ivgCatalog), false)
	require.NoError(t, err)

	content := `# Procedure: IVg
# Parameters:
# Chip Group: A1
# Chip Number: 3
# Start Time: 2026-01-01T00:00:00Z
# Data:
Vg (V)
0.0
`
	path := writeFile(t, dir, "run5.txt", content)
	cfg := Config{StageRoot: dir + "/stage", LocalTZ: time.UTC}

	first, err := Ingest(path, cat, cfg)
	require.NoError(t, err)
	second, err := Ingest(path, cat, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Event.Identity, second.Event.Identity)
}
