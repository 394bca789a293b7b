// Package capacity measures what the injection pipeline is about to copy and
// whether the target image has room for it.
package capacity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/instpkg/instpkg/internal/dmg"
)

// DefaultMarginKB is subtracted from the available space before comparing
// against the payload size, to cover filesystem overhead the file-size walk
// does not see.
const DefaultMarginKB = 100000

// SpaceUnknown is the sentinel AvailableSpace returns when the image cannot
// be inspected. Callers must treat it as fatal for capacity checks.
const SpaceUnknown = -1

// Report pairs the measured payload size with the measured free space.
type Report struct {
	TotalPackageSizeKB int64
	AvailableSpaceKB   int64
}

// InsufficientSpaceError is returned by Check when the payload plus margin
// does not fit.
type InsufficientSpaceError struct {
	Report   Report
	MarginKB int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient space on install image: %d KB needed (plus %d KB margin), %d KB available",
		e.Report.TotalPackageSizeKB, e.MarginKB, e.Report.AvailableSpaceKB)
}

// SizeOfPaths sums the apparent file sizes under the given paths, in KB.
// Directories are walked recursively. This is an approximation of the
// on-disk footprint, not a block accounting; the check margin absorbs the
// difference.
func SizeOfPaths(paths []string) (int64, error) {
	var total int64
	for _, path := range paths {
		err := filepath.WalkDir(path, func(p string, entry os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("sizing %s: %v", path, err)
		}
	}
	return total / 1024, nil
}

// AvailableSpace mounts imagePath read-only, reads the filesystem statistics
// of its first mount point and unmounts again. On any failure it returns
// SpaceUnknown along with the error: without a known free-space figure no
// capacity check can safely pass.
func AvailableSpace(manager *dmg.Manager, imagePath string) (int64, error) {
	handle, err := manager.Attach(imagePath, false)
	if err != nil {
		return SpaceUnknown, fmt.Errorf("mounting %s for capacity check: %v", imagePath, err)
	}
	defer manager.Detach(handle)

	var stat unix.Statfs_t
	if err := unix.Statfs(handle.MountPoints[0], &stat); err != nil {
		return SpaceUnknown, fmt.Errorf("statfs %s: %v", handle.MountPoints[0], err)
	}

	return int64(stat.Bavail) * int64(stat.Bsize) / 1024, nil
}

// Check enforces the capacity invariant: payload plus margin must fit in the
// available space.
func Check(report Report, marginKB int64) error {
	if report.TotalPackageSizeKB+marginKB > report.AvailableSpaceKB {
		return &InsufficientSpaceError{Report: report, MarginKB: marginKB}
	}
	logrus.Infof("capacity check passed: %s needed, %s available",
		humanize.IBytes(uint64(report.TotalPackageSizeKB)*1024),
		humanize.IBytes(uint64(report.AvailableSpaceKB)*1024))
	return nil
}
