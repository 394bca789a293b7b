package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0755))

	dest := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyFile(src, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.EqualValues(t, 0755, info.Mode().Perm())
}

func TestCopyFileMissingSource(t *testing.T) {
	err := CopyFile(filepath.Join(t.TempDir(), "gone"), filepath.Join(t.TempDir(), "copy"))
	assert.Error(t, err)
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "a", "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "b", "file"), []byte("data"), 0644))
	require.NoError(t, os.Symlink("a/b/file", filepath.Join(src, "link")))

	dest := filepath.Join(t.TempDir(), "tree")
	require.NoError(t, CopyTree(src, dest))

	data, err := os.ReadFile(filepath.Join(dest, "a", "b", "file"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	link, err := os.Readlink(filepath.Join(dest, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a/b/file", link)
}
