// Package pkgbundle assembles the output installer bundle: the legacy
// bundle-package directory layout, its metadata property lists, an empty
// payload archive with a matching bill-of-materials, and a synthesized
// Distribution. The actual install payload is never re-packaged here; it
// rides along as a side-loaded disk image under InstallData.
package pkgbundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"howett.net/plist"

	"github.com/instpkg/instpkg/internal/command"
	"github.com/instpkg/instpkg/internal/common"
	"github.com/instpkg/instpkg/internal/sysversion"
)

// DefaultPackageID is the reserved identifier used when the caller does not
// override it.
const DefaultPackageID = "com.github.instpkg.installosx.pkg"

// DefaultInstalledSizeKB is the declared installed size of the wrapped OS:
// 8 GiB in KB.
const DefaultInstalledSizeKB = 8 * 1024 * 1024

// ErrExists is wrapped into the error returned when the output path is
// already taken. The bundle is never silently overwritten.
var ErrExists = errors.New("output path already exists")

const (
	contentsDir  = "Contents"
	resourcesDir = "Contents/Resources"
	localizedDir = "Contents/Resources/English.lproj"
	// InstallDataDir receives the side-loaded install image.
	InstallDataDir = "Contents/Resources/InstallData"
)

// Assembler builds one output bundle. All paths it writes live under Path;
// Remove discards the whole subtree on failure.
type Assembler struct {
	runner command.Runner
	Path   string
}

func NewAssembler(runner command.Runner, path string) *Assembler {
	return &Assembler{runner: runner, Path: path}
}

// CreateSkeleton makes the fixed bundle directory layout. It fails without
// side effects when the output path already exists.
func (a *Assembler) CreateSkeleton() error {
	if _, err := os.Lstat(a.Path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, a.Path)
	}

	for _, dir := range []string{localizedDir, InstallDataDir} {
		if err := os.MkdirAll(filepath.Join(a.Path, dir), 0755); err != nil {
			return fmt.Errorf("creating bundle skeleton: %v", err)
		}
	}
	return nil
}

// Remove discards the partially built bundle. Used on every failure path
// after CreateSkeleton succeeded.
func (a *Assembler) Remove() {
	if err := os.RemoveAll(a.Path); err != nil {
		logrus.Errorf("removing partial bundle %s: %v", a.Path, err)
	}
}

type infoPlist struct {
	CFBundleIdentifier           string  `plist:"CFBundleIdentifier"`
	CFBundleShortVersionString   string  `plist:"CFBundleShortVersionString"`
	IFPkgFlagDefaultLocation     string  `plist:"IFPkgFlagDefaultLocation"`
	IFPkgFlagInstalledSize       int64   `plist:"IFPkgFlagInstalledSize"`
	IFPkgFlagRestartAction       string  `plist:"IFPkgFlagRestartAction"`
	IFPkgFlagAuthorizationAction string  `plist:"IFPkgFlagAuthorizationAction"`
	IFPkgFlagAllowBackRev        bool    `plist:"IFPkgFlagAllowBackRev"`
	IFPkgFlagRelocatable         bool    `plist:"IFPkgFlagRelocatable"`
	IFPkgFormatVersion           float64 `plist:"IFPkgFormatVersion"`
}

type descriptionPlist struct {
	IFPkgDescriptionTitle       string `plist:"IFPkgDescriptionTitle"`
	IFPkgDescriptionDescription string `plist:"IFPkgDescriptionDescription"`
}

// WriteMetadata produces the bundle's identification and description files:
// Info.plist, the localized Description.plist, the PkgInfo type marker and
// the package_version marker.
func (a *Assembler) WriteMetadata(version sysversion.VersionInfo, packageID string, installedSizeKB int64) error {
	if packageID == "" {
		packageID = DefaultPackageID
	}

	info := infoPlist{
		CFBundleIdentifier:           packageID,
		CFBundleShortVersionString:   version.ProductVersion,
		IFPkgFlagDefaultLocation:     "/",
		IFPkgFlagInstalledSize:       installedSizeKB,
		IFPkgFlagRestartAction:       "RequiredRestart",
		IFPkgFlagAuthorizationAction: "RootAuthorization",
		IFPkgFormatVersion:           0.1,
	}
	if err := a.writePlist(filepath.Join(contentsDir, "Info.plist"), info); err != nil {
		return err
	}

	description := descriptionPlist{
		IFPkgDescriptionTitle:       fmt.Sprintf("Install %s", OSVersionName(version.ProductVersion)),
		IFPkgDescriptionDescription: DescriptionText(version),
	}
	if err := a.writePlist(filepath.Join(localizedDir, "Description.plist"), description); err != nil {
		return err
	}

	// Fixed-content markers identifying the bundle format.
	if err := a.writeFile(filepath.Join(contentsDir, "PkgInfo"), "pmkrpkg1\n", 0644); err != nil {
		return err
	}
	return a.writeFile(filepath.Join(resourcesDir, "package_version"), "major: 1\nminor: 0\n", 0644)
}

// WriteEmptyPayload produces an empty Archive.pax.gz and a matching
// Archive.bom, both generated from the same empty directory inside the
// scratch workspace so the archive and the bill-of-materials stay
// structurally consistent. The real payload is the side-loaded disk image,
// which the installer never unpacks through the archive.
func (a *Assembler) WriteEmptyPayload(scratchDir string) error {
	empty := filepath.Join(scratchDir, "emptypayload")
	if err := os.MkdirAll(empty, 0755); err != nil {
		return fmt.Errorf("creating empty payload directory: %v", err)
	}

	archive := filepath.Join(a.Path, contentsDir, "Archive.pax.gz")
	if _, err := a.runner.RunIn(empty, "pax", "-w", "-z", "-f", archive, "."); err != nil {
		return fmt.Errorf("writing empty payload archive: %v", err)
	}

	bom := filepath.Join(a.Path, contentsDir, "Archive.bom")
	if _, err := a.runner.Run("mkbom", empty, bom); err != nil {
		return fmt.Errorf("writing payload bill-of-materials: %v", err)
	}
	return nil
}

const postflightScript = `#!/bin/sh
#
# Restarts into the installer environment carried in the side-loaded image.
#
exec "$PACKAGE_PATH/Contents/Resources/startosinstall.sh"
`

// WritePostflight writes the executable post-install script.
func (a *Assembler) WritePostflight() error {
	return a.writeFile(filepath.Join(resourcesDir, "postflight"), postflightScript, 0755)
}

// CopyLocalizedResources copies the vendor package's English localization
// into the bundle. Failure here degrades the UI text only, so it is logged
// and the build continues.
func (a *Assembler) CopyLocalizedResources(vendorResources string) {
	src := filepath.Join(vendorResources, "en.lproj")
	if _, err := os.Stat(src); err != nil {
		src = filepath.Join(vendorResources, "English.lproj")
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		logrus.Warnf("no localized resources at %s: %v", src, err)
		return
	}

	dest := filepath.Join(a.Path, localizedDir)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := common.CopyFile(filepath.Join(src, entry.Name()), filepath.Join(dest, entry.Name())); err != nil {
			logrus.Warnf("copying localized resource %s: %v", entry.Name(), err)
		}
	}
}

// InstallImagePath returns where the side-loaded install image lives inside
// the bundle.
func (a *Assembler) InstallImagePath() string {
	return filepath.Join(a.Path, InstallDataDir, "InstallESD.dmg")
}

func (a *Assembler) writePlist(rel string, v interface{}) error {
	data, err := plist.MarshalIndent(v, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("encoding %s: %v", rel, err)
	}
	return a.writeFile(rel, string(data)+"\n", 0644)
}

func (a *Assembler) writeFile(rel, content string, mode os.FileMode) error {
	path := filepath.Join(a.Path, rel)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("writing %s: %v", rel, err)
	}
	return nil
}
