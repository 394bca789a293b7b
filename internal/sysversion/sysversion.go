// Package sysversion reads the OS version and build number from a mounted
// base-system volume.
package sysversion

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"
)

const systemVersionPath = "System/Library/CoreServices/SystemVersion.plist"

// VersionInfo identifies the OS carried by an install image. Both fields are
// required: the build cannot label or size its output without them, so a
// missing field is an error, never a default.
type VersionInfo struct {
	ProductVersion string
	BuildNumber    string
}

// FromVolume reads SystemVersion.plist from a mounted volume.
func FromVolume(mountPoint string) (VersionInfo, error) {
	return FromFile(filepath.Join(mountPoint, systemVersionPath))
}

// FromFile parses a SystemVersion.plist.
func FromFile(path string) (VersionInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("reading system version: %v", err)
	}

	var raw struct {
		ProductVersion      string `plist:"ProductVersion"`
		ProductBuildVersion string `plist:"ProductBuildVersion"`
	}
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return VersionInfo{}, fmt.Errorf("parsing %s: %v", path, err)
	}

	if raw.ProductVersion == "" || raw.ProductBuildVersion == "" {
		return VersionInfo{}, fmt.Errorf("%s is missing ProductVersion or ProductBuildVersion", path)
	}

	return VersionInfo{
		ProductVersion: raw.ProductVersion,
		BuildNumber:    raw.ProductBuildVersion,
	}, nil
}
