// Package inject copies extra installable packages into a shadowed copy of
// the source install image, rewrites its package collection and materializes
// the result as a new compressed image. The source image is never modified;
// all writes land in the shadow overlay, which is cheap to discard on error.
package inject

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"howett.net/plist"

	"github.com/instpkg/instpkg/internal/common"
	"github.com/instpkg/instpkg/internal/dmg"
)

const (
	// PackagesDir is where the automated installer looks for packages,
	// relative to the install image root.
	PackagesDir = "System/Installation/Packages"
	// CollectionFile is the installer's package-collection file name.
	CollectionFile = "OSInstall.collection"
	// VendorManifest is the vendor's base install manifest inside
	// PackagesDir.
	VendorManifest = "OSInstall.mpkg"

	extrasDir           = "Packages/Extras"
	automatedConfigFile = "minstallconfig.xml"
	targetVolumeName    = "Macintosh HD"
)

// Error is the distinguished error type for injection failures. The
// orchestrator keys on it to guarantee a best-effort detach runs before the
// error reaches the top-level failure handler.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("injecting packages (%s): %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Injector runs the injection pipeline against one source image.
type Injector struct {
	manager *dmg.Manager
}

func NewInjector(manager *dmg.Manager) *Injector {
	return &Injector{manager: manager}
}

// Inject copies the extra packages into a shadowed mount of sourceImage,
// writes the package collection (and, for disk-image output, the automated
// install configuration), then converts the image+shadow pair into a new
// compressed image at destImage.
func (i *Injector) Inject(sourceImage string, packages []string, destImage string, writeAutomatedConfig bool) error {
	collection := NewCollectionList(packages)

	handle, err := i.manager.Attach(sourceImage, true)
	if err != nil {
		return &Error{Stage: "attach", Err: err}
	}
	// The deferred detach covers every early return below; Detach is
	// idempotent, so the explicit call before Convert is safe too.
	defer i.manager.Detach(handle)

	packagesDir := filepath.Join(handle.MountPoints[0], PackagesDir)
	if err := os.MkdirAll(packagesDir, 0755); err != nil {
		return &Error{Stage: "prepare", Err: err}
	}

	for _, pkg := range packages {
		dest := filepath.Join(packagesDir, filepath.Base(pkg))
		logrus.Infof("copying %s into install image", filepath.Base(pkg))

		info, err := os.Stat(pkg)
		if err != nil {
			return &Error{Stage: "copy", Err: err}
		}
		if info.IsDir() {
			err = common.CopyTree(pkg, dest)
		} else {
			err = common.CopyFile(pkg, dest)
		}
		if err != nil {
			return &Error{Stage: "copy", Err: err}
		}
	}

	data, err := collection.Marshal()
	if err != nil {
		return &Error{Stage: "collection", Err: err}
	}
	if err := os.WriteFile(filepath.Join(packagesDir, CollectionFile), data, 0644); err != nil {
		return &Error{Stage: "collection", Err: err}
	}

	if writeAutomatedConfig {
		if err := writeAutomatedInstallConfig(handle.MountPoints[0]); err != nil {
			return &Error{Stage: "automated-config", Err: err}
		}
	}

	i.manager.Detach(handle)

	if err := i.manager.Convert(sourceImage, handle.ShadowPath, destImage); err != nil {
		return &Error{Stage: "convert", Err: err}
	}
	return nil
}

type automatedInstallConfig struct {
	InstallType string `plist:"InstallType"`
	Language    string `plist:"Language"`
	Package     string `plist:"Package"`
	Target      string `plist:"Target"`
	TargetName  string `plist:"TargetName"`
}

// writeAutomatedInstallConfig writes the configuration the installer
// environment reads when no interactive UI will run. Only produced for
// disk-image output.
func writeAutomatedInstallConfig(mountPoint string) error {
	dir := filepath.Join(mountPoint, extrasDir)
	// Idempotent: some images already carry an Extras directory.
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	config := automatedInstallConfig{
		InstallType: "automated",
		Language:    "en",
		Package:     "/" + PackagesDir + "/" + CollectionFile,
		Target:      "/Volumes/" + targetVolumeName,
		TargetName:  targetVolumeName,
	}
	data, err := plist.MarshalIndent(config, plist.XMLFormat, "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, automatedConfigFile), data, 0644)
}
