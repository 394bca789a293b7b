package pkgbundle

import (
	"fmt"
	"strings"

	"github.com/instpkg/instpkg/internal/sysversion"
)

// osVersionNames maps two-component OS versions to their marketing names.
var osVersionNames = map[string]string{
	"10.6":  "Mac OS X Snow Leopard",
	"10.7":  "Mac OS X Lion",
	"10.8":  "OS X Mountain Lion",
	"10.9":  "OS X Mavericks",
	"10.10": "OS X Yosemite",
	"10.11": "OS X El Capitan",
	"10.12": "macOS Sierra",
}

// OSVersionName returns the marketing name for a product version, falling
// back to the raw version string when the release is unknown.
func OSVersionName(productVersion string) string {
	parts := strings.SplitN(productVersion, ".", 3)
	if len(parts) >= 2 {
		if name, ok := osVersionNames[parts[0]+"."+parts[1]]; ok {
			return name
		}
	}
	return productVersion
}

// DescriptionText is the human-readable description shown by the installer.
func DescriptionText(version sysversion.VersionInfo) string {
	return fmt.Sprintf("Unattended custom install of %s version %s build %s",
		OSVersionName(version.ProductVersion), version.ProductVersion, version.BuildNumber)
}
