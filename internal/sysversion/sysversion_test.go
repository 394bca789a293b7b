package sysversion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const systemVersionPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>ProductBuildVersion</key>
	<string>13C64</string>
	<key>ProductName</key>
	<string>Mac OS X</string>
	<key>ProductVersion</key>
	<string>10.9.2</string>
</dict>
</plist>
`

const systemVersionPlistNoBuild = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>ProductVersion</key>
	<string>10.9.2</string>
</dict>
</plist>
`

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SystemVersion.plist")
	require.NoError(t, os.WriteFile(path, []byte(systemVersionPlist), 0644))

	info, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, VersionInfo{ProductVersion: "10.9.2", BuildNumber: "13C64"}, info)
}

func TestFromFileMissingBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SystemVersion.plist")
	require.NoError(t, os.WriteFile(path, []byte(systemVersionPlistNoBuild), 0644))

	_, err := FromFile(path)
	assert.ErrorContains(t, err, "missing ProductVersion or ProductBuildVersion")
}

func TestFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SystemVersion.plist")
	require.NoError(t, os.WriteFile(path, []byte("not a plist"), 0644))

	_, err := FromFile(path)
	assert.Error(t, err)
}

func TestFromVolume(t *testing.T) {
	volume := t.TempDir()
	dir := filepath.Join(volume, "System", "Library", "CoreServices")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SystemVersion.plist"), []byte(systemVersionPlist), 0644))

	info, err := FromVolume(volume)
	require.NoError(t, err)
	assert.Equal(t, "13C64", info.BuildNumber)
}

func TestFromVolumeMissing(t *testing.T) {
	_, err := FromVolume(t.TempDir())
	assert.Error(t, err)
}
