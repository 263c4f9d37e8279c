package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Dune: Messiah", "Dune - Messiah"},
		{"Either/Or", "Either-Or"},
		{"back\\slash", "back-slash"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.name))
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")

	assert.False(t, FileExists(path))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.True(t, FileExists(path))

	assert.False(t, FileExists(dir), "directories are not files")
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")

	written, err := WriteJSONFile(map[string]string{"title": "Dune"}, path, false)
	require.NoError(t, err)
	assert.True(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "Dune"`)

	// Existing file is left alone without overwrite.
	written, err = WriteJSONFile(map[string]string{"title": "Other"}, path, false)
	require.NoError(t, err)
	assert.False(t, written)

	written, err = WriteJSONFile(map[string]string{"title": "Other"}, path, true)
	require.NoError(t, err)
	assert.True(t, written)
}
