package capacity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	cases := []struct {
		totalKB int64
		availKB int64
		margin  int64
		fits    bool
	}{
		{1000, 1050, 100, false},
		{1000, 1100, 100, false},
		{1000, 1101, 100, true},
		{1000, 1200, 100, true},
		{0, 50, 100, false},
		{0, 100, 100, true},
	}

	for _, c := range cases {
		err := Check(Report{TotalPackageSizeKB: c.totalKB, AvailableSpaceKB: c.availKB}, c.margin)
		if c.fits {
			assert.NoError(t, err, "total=%d avail=%d margin=%d", c.totalKB, c.availKB, c.margin)
		} else {
			var spaceErr *InsufficientSpaceError
			require.ErrorAs(t, err, &spaceErr, "total=%d avail=%d margin=%d", c.totalKB, c.availKB, c.margin)
			assert.Equal(t, c.totalKB, spaceErr.Report.TotalPackageSizeKB)
		}
	}
}

func TestSizeOfPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 10*1024), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 6*1024), 0644))

	flat := filepath.Join(t.TempDir(), "flat.pkg")
	require.NoError(t, os.WriteFile(flat, make([]byte, 4*1024), 0644))

	size, err := SizeOfPaths([]string{dir, flat})
	require.NoError(t, err)
	assert.EqualValues(t, 20, size)
}

func TestSizeOfPathsIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 123456), 0644))

	first, err := SizeOfPaths([]string{dir})
	require.NoError(t, err)
	second, err := SizeOfPaths([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSizeOfPathsMissing(t *testing.T) {
	_, err := SizeOfPaths([]string{filepath.Join(t.TempDir(), "gone")})
	assert.Error(t, err)
}
