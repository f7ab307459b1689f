package docker

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// readArchive returns a map of archive path to file content. Directory
// entries map to an empty string.
func readArchive(t *testing.T, r io.Reader) map[string]string {
	t.Helper()
	entries := map[string]string{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		content := ""
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			require.NoError(t, err)
			content = string(data)
		}
		entries[hdr.Name] = content
	}
	return entries
}

// =============================================================================
// Build Context Tests
// =============================================================================

func TestTarBuildContext_Files(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", "FROM scratch\n")
	writeFile(t, dir, "app/main.txt", "payload")

	r, err := tarBuildContext(dir)
	require.NoError(t, err)

	entries := readArchive(t, r)
	assert.Equal(t, "FROM scratch\n", entries["Dockerfile"])
	assert.Equal(t, "payload", entries["app/main.txt"])
	assert.Contains(t, entries, "app/")
}

func TestTarBuildContext_SkipsGitDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Dockerfile", "FROM scratch\n")
	writeFile(t, dir, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, dir, ".git/objects/aa/bb", "blob")

	r, err := tarBuildContext(dir)
	require.NoError(t, err)

	entries := readArchive(t, r)
	assert.Contains(t, entries, "Dockerfile")
	for name := range entries {
		assert.NotContains(t, name, ".git")
	}
}

func TestTarBuildContext_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	r, err := tarBuildContext(dir)
	require.NoError(t, err)

	entries := readArchive(t, r)
	assert.Empty(t, entries)
}

func TestTarBuildContext_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "x")

	_, err := tarBuildContext(filepath.Join(dir, "file.txt"))
	assert.ErrorContains(t, err, "not a directory")
}

func TestTarBuildContext_Missing(t *testing.T) {
	_, err := tarBuildContext(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
