// Package dmg drives the platform disk-image tooling. Every mountable input
// and output in the build pipeline goes through hdiutil, so this package owns
// attach/detach pairing, shadow overlays and image conversion.
package dmg

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"howett.net/plist"

	"github.com/instpkg/instpkg/internal/command"
)

// ErrNothingMounted is returned when an attach succeeds but produces no
// browsable volume. Not every attach yields a mount point (some images only
// expose raw device entries), so callers must treat this as a checkable
// condition rather than a tool failure.
var ErrNothingMounted = errors.New("attach produced no mount points")

// MountHandle is the result of a successful Attach. It must be passed to
// Detach exactly once on every exit path before the scratch workspace that
// holds its shadow file is removed.
type MountHandle struct {
	Image       string
	MountPoints []string
	// ShadowPath is the copy-on-write overlay, empty when the image was
	// attached without one. It lives in the scratch workspace and is the
	// second half of the (image, shadow) pair that Convert materializes.
	ShadowPath string

	detached bool
}

// Manager wraps hdiutil. Shadow files are created inside scratchDir so they
// are discarded with the rest of the workspace.
type Manager struct {
	runner  command.Runner
	scratch string
}

func NewManager(runner command.Runner, scratchDir string) *Manager {
	return &Manager{runner: runner, scratch: scratchDir}
}

// attachResult mirrors the relevant subset of `hdiutil attach -plist` output.
type attachResult struct {
	SystemEntities []struct {
		DevEntry   string `plist:"dev-entry"`
		MountPoint string `plist:"mount-point"`
	} `plist:"system-entities"`
}

// Attach mounts imagePath and returns the resulting mount points. With
// useShadow all writes to the mounted volumes are redirected to a fresh
// overlay file, leaving the image itself untouched.
//
// Attaching the same image twice without a shadow is not safe; the pipeline
// is strictly sequential and never does it.
func (m *Manager) Attach(imagePath string, useShadow bool) (*MountHandle, error) {
	args := []string{"attach", imagePath, "-mountrandom", "/tmp", "-nobrowse", "-plist", "-owners", "on"}

	shadow := ""
	if useShadow {
		shadow = filepath.Join(m.scratch, uuid.New().String()+".shadow")
		args = append(args, "-shadow", shadow)
	}

	out, err := m.runner.Run("hdiutil", args...)
	if err != nil {
		return nil, fmt.Errorf("attaching %s: %v", imagePath, err)
	}

	var result attachResult
	if _, err := plist.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parsing attach output for %s: %v", imagePath, err)
	}

	var points []string
	for _, entity := range result.SystemEntities {
		if entity.MountPoint != "" {
			points = append(points, entity.MountPoint)
		}
	}
	if len(points) == 0 {
		return nil, ErrNothingMounted
	}

	return &MountHandle{
		Image:       imagePath,
		MountPoints: points,
		ShadowPath:  shadow,
	}, nil
}

// Detach unmounts every mount point of the handle. It first attempts a polite
// detach and retries with -force on failure. Detach never returns an error:
// it is frequently called while an earlier error is already being handled and
// must not mask it. Calling Detach more than once is a no-op.
func (m *Manager) Detach(handle *MountHandle) {
	if handle == nil || handle.detached {
		return
	}
	handle.detached = true

	for _, point := range handle.MountPoints {
		if _, err := m.runner.Run("hdiutil", "detach", point); err != nil {
			logrus.Warnf("detaching %s failed: %v, retrying with -force", point, err)
			if _, err := m.runner.Run("hdiutil", "detach", point, "-force"); err != nil {
				logrus.Errorf("forced detach of %s failed: %v", point, err)
			}
		}
	}
}

// Convert flattens imagePath, with the copy-on-write changes from shadowPath
// applied, into a new standalone zlib-compressed image at destPath. The
// source image is not modified. shadowPath may be empty for a plain
// recompression.
func (m *Manager) Convert(imagePath, shadowPath, destPath string) error {
	args := []string{"convert", imagePath, "-format", "UDZO", "-o", destPath}
	if shadowPath != "" {
		args = append(args, "-shadow", shadowPath)
	}

	if _, err := m.runner.Run("hdiutil", args...); err != nil {
		return fmt.Errorf("converting %s: %v", imagePath, err)
	}
	return nil
}
