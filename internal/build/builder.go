// Package build sequences the whole pipeline: mount the source installer,
// extract what the output needs, assemble the bundle, optionally inject
// extra packages, and guarantee that mounts, partial output and the scratch
// workspace are cleaned up on every exit path.
package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/instpkg/instpkg/internal/capacity"
	"github.com/instpkg/instpkg/internal/catalog"
	"github.com/instpkg/instpkg/internal/command"
	"github.com/instpkg/instpkg/internal/common"
	"github.com/instpkg/instpkg/internal/distribution"
	"github.com/instpkg/instpkg/internal/dmg"
	"github.com/instpkg/instpkg/internal/flatpkg"
	"github.com/instpkg/instpkg/internal/inject"
	"github.com/instpkg/instpkg/internal/pkgbundle"
	"github.com/instpkg/instpkg/internal/sysversion"
)

// Options configures one build. Zero values select the documented defaults.
type Options struct {
	// Source is the vendor installer: an application bundle or a bare
	// disk image.
	Source string
	// OutputPath overrides the default InstallOSX_<version>_<build>
	// name in the working directory.
	OutputPath string
	// PackageID overrides the default package identifier.
	PackageID string
	// ExtraPackages are injected into a copy of the install image.
	ExtraPackages []string
	// DMGOutput selects a standalone compressed disk image instead of a
	// package bundle.
	DMGOutput bool
	// KeepScratch suppresses cleanup of partial output and the scratch
	// workspace, for diagnosing failed builds.
	KeepScratch bool
	// CatalogURL enables the best-effort compatibility-update lookup.
	CatalogURL string

	MarginKB        int64
	InstalledSizeKB int64
}

// Builder owns the in-flight build. Not safe for concurrent use; one build
// at a time is the design.
type Builder struct {
	runner  command.Runner
	opts    Options
	manager *dmg.Manager
	mounts  []*dmg.MountHandle

	// partialOutput is set once the output path has been created and
	// cleared on success, so the failure path knows what to remove.
	partialOutput string

	// availableSpace is swapped out in tests.
	availableSpace func(*dmg.Manager, string) (int64, error)
}

func New(runner command.Runner, opts Options) *Builder {
	if opts.MarginKB == 0 {
		opts.MarginKB = capacity.DefaultMarginKB
	}
	if opts.InstalledSizeKB == 0 {
		opts.InstalledSizeKB = pkgbundle.DefaultInstalledSizeKB
	}
	return &Builder{
		runner:         runner,
		opts:           opts,
		availableSpace: capacity.AvailableSpace,
	}
}

// Run executes the build and returns the path of the finished artifact. On
// failure every still-open mount is detached, partial output is removed
// (unless KeepScratch) and the scratch workspace is discarded.
func (b *Builder) Run() (string, error) {
	source, err := ResolveSource(b.opts.Source)
	if err != nil {
		return "", err
	}

	workspace, err := NewWorkspace()
	if err != nil {
		return "", err
	}
	b.manager = dmg.NewManager(b.runner, workspace.Root())

	out, err := b.build(workspace, source)

	if err != nil {
		var injErr *inject.Error
		if errors.As(err, &injErr) {
			logrus.Warnf("injection pipeline failed during %s, detaching before cleanup", injErr.Stage)
		}
	}
	b.detachAll()

	if err != nil && b.partialOutput != "" {
		if b.opts.KeepScratch {
			logrus.Warnf("keeping partial output %s for diagnosis", b.partialOutput)
		} else {
			logrus.Infof("removing partial output %s", b.partialOutput)
			if rmErr := os.RemoveAll(b.partialOutput); rmErr != nil {
				logrus.Errorf("removing partial output: %v", rmErr)
			}
		}
	}

	if b.opts.KeepScratch {
		logrus.Warnf("keeping scratch workspace %s", workspace.Root())
	} else {
		workspace.Remove()
	}

	if err != nil {
		return "", err
	}
	return out, nil
}

func (b *Builder) build(workspace *Workspace, source *Source) (string, error) {
	handle, err := b.attach(source.Image, false)
	if err != nil {
		return "", fmt.Errorf("mounting source image: %v", err)
	}

	version, err := sysversion.FromVolume(handle.MountPoints[0])
	if err != nil {
		return "", err
	}
	logrus.Infof("source installer is %s version %s build %s",
		pkgbundle.OSVersionName(version.ProductVersion), version.ProductVersion, version.BuildNumber)

	if b.opts.CatalogURL != "" {
		b.lookupCompatibilityUpdate(version.ProductVersion)
	}

	vendorManifest := filepath.Join(handle.MountPoints[0], inject.PackagesDir, inject.VendorManifest)
	if _, err := os.Stat(vendorManifest); err != nil {
		return "", fmt.Errorf("source image has no install manifest: %v", err)
	}

	expanded, err := flatpkg.Expand(b.runner, vendorManifest, workspace.Join("osinstall"))
	if err != nil {
		return "", err
	}

	fragments, err := distribution.ExtractFragments(expanded.Distribution())
	if err != nil {
		logrus.Warnf("cannot extract manifest fragments, continuing with defaults: %v", err)
		fragments = distribution.DefaultFragments()
	}

	options := distribution.ExtractInstallerOptions(expanded.Distribution())
	if options.OSVersion != "" && options.OSVersion != version.ProductVersion {
		logrus.Warnf("install manifest reports version %s, base system reports %s",
			options.OSVersion, version.ProductVersion)
	}

	outPath := b.outputPath(version)

	if b.opts.DMGOutput {
		return b.buildImage(source, outPath)
	}
	return b.buildBundle(workspace, source, handle, expanded, fragments, version, outPath)
}

// buildImage produces the disk-image output: the augmented install payload
// as a standalone compressed image with an automated-install configuration.
func (b *Builder) buildImage(source *Source, outPath string) (string, error) {
	if _, err := os.Lstat(outPath); err == nil {
		return "", fmt.Errorf("%w: %s", pkgbundle.ErrExists, outPath)
	}

	if err := b.checkCapacity(source); err != nil {
		return "", err
	}

	b.detachAll()

	b.partialOutput = outPath
	injector := inject.NewInjector(b.manager)
	if err := injector.Inject(source.Image, b.opts.ExtraPackages, outPath, true); err != nil {
		return "", err
	}

	b.partialOutput = ""
	return outPath, nil
}

// buildBundle produces the package-bundle output.
func (b *Builder) buildBundle(workspace *Workspace, source *Source, handle *dmg.MountHandle,
	expanded flatpkg.Expanded, fragments distribution.Fragments,
	version sysversion.VersionInfo, outPath string) (string, error) {

	assembler := pkgbundle.NewAssembler(b.runner, outPath)
	if err := assembler.CreateSkeleton(); err != nil {
		return "", err
	}
	b.partialOutput = outPath

	if err := assembler.WriteMetadata(version, b.opts.PackageID, b.opts.InstalledSizeKB); err != nil {
		return "", err
	}
	if err := assembler.WriteEmptyPayload(workspace.Root()); err != nil {
		return "", err
	}
	if err := assembler.WriteDistribution(fragments, b.opts.PackageID, b.opts.InstalledSizeKB); err != nil {
		return "", err
	}
	if err := assembler.WritePostflight(); err != nil {
		return "", err
	}
	assembler.CopyLocalizedResources(expanded.Resources())

	if len(b.opts.ExtraPackages) > 0 {
		if err := b.checkCapacity(source); err != nil {
			return "", err
		}

		// The injector re-attaches the same image with a shadow, so
		// release the read-only mount first.
		b.manager.Detach(handle)

		injector := inject.NewInjector(b.manager)
		if err := injector.Inject(source.Image, b.opts.ExtraPackages, assembler.InstallImagePath(), false); err != nil {
			return "", err
		}
	} else {
		b.manager.Detach(handle)
		logrus.Infof("copying install image into bundle")
		if err := common.CopyFile(source.Image, assembler.InstallImagePath()); err != nil {
			return "", err
		}
	}

	b.partialOutput = ""
	return outPath, nil
}

// checkCapacity aborts the build before any package is copied when the
// extras plus the safety margin do not fit in the image's free space.
func (b *Builder) checkCapacity(source *Source) error {
	if len(b.opts.ExtraPackages) == 0 {
		return nil
	}

	total, err := capacity.SizeOfPaths(b.opts.ExtraPackages)
	if err != nil {
		return err
	}

	// AvailableSpace mounts the image itself, so release our read-only
	// mount first; attaching the same image twice is unsupported.
	b.detachAll()

	available, err := b.availableSpace(b.manager, source.Image)
	if err != nil {
		return err
	}

	return capacity.Check(capacity.Report{
		TotalPackageSizeKB: total,
		AvailableSpaceKB:   available,
	}, b.opts.MarginKB)
}

func (b *Builder) lookupCompatibilityUpdate(productVersion string) {
	client := catalog.NewClient(b.opts.CatalogURL)
	url, err := client.CompatibilityUpdateURL(productVersion)
	if err != nil {
		logrus.Warnf("compatibility update lookup failed: %v", err)
		return
	}
	logrus.Infof("installer compatibility update available: %s", url)
}

func (b *Builder) outputPath(version sysversion.VersionInfo) string {
	if b.opts.OutputPath != "" {
		return b.opts.OutputPath
	}
	ext := "pkg"
	if b.opts.DMGOutput {
		ext = "dmg"
	}
	return fmt.Sprintf("InstallOSX_%s_%s.%s", version.ProductVersion, version.BuildNumber, ext)
}

func (b *Builder) attach(imagePath string, useShadow bool) (*dmg.MountHandle, error) {
	handle, err := b.manager.Attach(imagePath, useShadow)
	if err != nil {
		return nil, err
	}
	b.mounts = append(b.mounts, handle)
	return handle, nil
}

// detachAll releases every mount the builder itself opened. Detach is
// idempotent, so this is safe to call from both the success and the failure
// path.
func (b *Builder) detachAll() {
	for _, handle := range b.mounts {
		b.manager.Detach(handle)
	}
}
