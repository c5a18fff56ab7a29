package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name    string
	content string
}

func createTestZIP(t *testing.T, entries ...zipEntry) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(e.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP(t *testing.T) {
	zipPath := createTestZIP(t,
		zipEntry{"a.csv", "id,amount\n1,100\n"},
		zipEntry{"nested/b.json", `[{"id":1}]`},
		zipEntry{"__MACOSX/._a.csv", "junk"},
	)

	dest := t.TempDir()
	paths, err := ExtractZIP(zipPath, dest, ZIPLimits{})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dest, "a.csv"), paths[0])
	assert.Equal(t, filepath.Join(dest, "nested", "b.json"), paths[1])

	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(data))
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, zipEntry{"../evil.csv", "x"})
	_, err := ExtractZIP(zipPath, t.TempDir(), ZIPLimits{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_Limits(t *testing.T) {
	zipPath := createTestZIP(t,
		zipEntry{"a.csv", "1"},
		zipEntry{"b.csv", "2"},
	)
	_, err := ExtractZIP(zipPath, t.TempDir(), ZIPLimits{MaxEntries: 1})
	require.Error(t, err)

	zipPath = createTestZIP(t, zipEntry{"big.csv", "0123456789"})
	_, err = ExtractZIP(zipPath, t.TempDir(), ZIPLimits{MaxEntryBytes: 4})
	require.Error(t, err)
}

func TestExtractZIP_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := ExtractZIP(path, t.TempDir(), ZIPLimits{})
	require.Error(t, err)
}

func TestIsZIP(t *testing.T) {
	assert.True(t, IsZIP("corpus.ZIP"))
	assert.False(t, IsZIP("corpus.csv"))
}
