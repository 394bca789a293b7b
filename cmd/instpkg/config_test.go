package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instpkg/instpkg/internal/build"
)

const configFixture = `
output = "/builds/InstallOSX.pkg"
pkgid = "org.example.site.pkg"
packages = ["/downloads/munkitools.pkg", "/downloads/puppet.pkg"]
dmg = true
catalog_url = "https://catalog.example.com/index.sucatalog"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instpkg.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "")
	flags.String("pkgid", "", "")
	flags.StringArray("pkg", nil, "")
	flags.Bool("dmg", false, "")
	flags.String("catalog-url", "", "")
	return flags
}

func TestParseConfig(t *testing.T) {
	config, err := parseConfig(writeConfig(t, configFixture))
	require.NoError(t, err)

	assert.Equal(t, "/builds/InstallOSX.pkg", config.Output)
	assert.Equal(t, "org.example.site.pkg", config.PackageID)
	assert.Equal(t, []string{"/downloads/munkitools.pkg", "/downloads/puppet.pkg"}, config.Packages)
	require.NotNil(t, config.DMG)
	assert.True(t, *config.DMG)
}

func TestParseConfigMissingFile(t *testing.T) {
	_, err := parseConfig(filepath.Join(t.TempDir(), "gone.toml"))
	assert.Error(t, err)
}

func TestConfigApply(t *testing.T) {
	config, err := parseConfig(writeConfig(t, configFixture))
	require.NoError(t, err)

	opts := config.apply(build.Options{}, testFlags())
	assert.Equal(t, "/builds/InstallOSX.pkg", opts.OutputPath)
	assert.Equal(t, "org.example.site.pkg", opts.PackageID)
	assert.True(t, opts.DMGOutput)
	assert.Equal(t, "https://catalog.example.com/index.sucatalog", opts.CatalogURL)
}

func TestConfigApplyFlagsWin(t *testing.T) {
	config, err := parseConfig(writeConfig(t, configFixture))
	require.NoError(t, err)

	flags := testFlags()
	require.NoError(t, flags.Set("output", "/elsewhere/out.pkg"))
	require.NoError(t, flags.Set("dmg", "false"))

	opts := config.apply(build.Options{OutputPath: "/elsewhere/out.pkg"}, flags)
	assert.Equal(t, "/elsewhere/out.pkg", opts.OutputPath)
	assert.False(t, opts.DMGOutput)
	// Unset flags still take file values.
	assert.Equal(t, "org.example.site.pkg", opts.PackageID)
}

func TestRecognizedPackage(t *testing.T) {
	assert.True(t, recognizedPackage("/downloads/munkitools.pkg"))
	assert.True(t, recognizedPackage("/downloads/tools.mpkg"))
	assert.False(t, recognizedPackage("/downloads/archive.zip"))
	assert.False(t, recognizedPackage("/downloads/installer.dmg"))
}
