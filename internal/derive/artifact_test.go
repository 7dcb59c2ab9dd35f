package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMetricsArtifactMaterializesRows(t *testing.T) {
	rows := []Emitted{
		{SourceIdentity: "id1", MetricName: "peak_gm", Value: "1.5", ExtractionVersion: "v1"},
	}
	tbl := BuildMetricsArtifact(rows)

	require.Equal(t, 1, tbl.NumRows)
	assert.Equal(t, "id1", tbl.Columns["source_identity"].Strs[0])
	assert.Equal(t, "peak_gm", tbl.Columns["metric_name"].Strs[0])
}

func TestReplaceVersionedOverwritesSameVersion(t *testing.T) {
	prior := []Emitted{
		{SourceIdentity: "id1", MetricName: "peak_gm", ExtractionVersion: "v1", Value: "1.0"},
	}
	fresh := []Emitted{
		{SourceIdentity: "id1", MetricName: "peak_gm", ExtractionVersion: "v1", Value: "2.0"},
	}

	out := ReplaceVersioned(prior, fresh)
	require.Len(t, out, 1)
	assert.Equal(t, "2.0", out[0].Value)
}

func TestReplaceVersionedKeepsDifferentVersionUntouched(t *testing.T) {
	prior := []Emitted{
		{SourceIdentity: "id1", MetricName: "peak_gm", ExtractionVersion: "v1", Value: "1.0"},
	}
	fresh := []Emitted{
		{SourceIdentity: "id1", MetricName: "peak_gm", ExtractionVersion: "v2", Value: "3.0"},
	}

	out := ReplaceVersioned(prior, fresh)
	require.Len(t, out, 2)
}
