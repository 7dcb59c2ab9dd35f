package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscoverFindsMatchingExtensionRecursively(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.txt"))
	touch(t, filepath.Join(dir, "sub", "b.txt"))
	touch(t, filepath.Join(dir, "c.csv"))

	files, err := Discover(dir, ".txt")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestDiscoverIsCaseInsensitiveAndSorted(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "z.TXT"))
	touch(t, filepath.Join(dir, "a.txt"))

	files, err := Discover(dir, ".txt")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.True(t, files[0] < files[1])
}

func TestDiscoverSkipsHiddenAndExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, ".hidden", "a.txt"))
	touch(t, filepath.Join(dir, "vendor", "b.txt"))
	touch(t, filepath.Join(dir, "node_modules", "c.txt"))
	touch(t, filepath.Join(dir, "visible.txt"))

	files, err := Discover(dir, ".txt")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "visible.txt"), files[0])
}

func TestDiscoverSkipsResourceForkFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "._a.txt"))
	touch(t, filepath.Join(dir, "a.txt"))

	files, err := Discover(dir, ".txt")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "a.txt"), files[0])
}
