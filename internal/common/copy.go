package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies a regular file, preserving its mode.
func CopyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("copying %s: %v", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copying %s: %v", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("copying %s to %s: %v", src, dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %v", src, dest, err)
	}

	return out.Close()
}

// CopyTree recursively copies the directory at src to dest, which must not
// exist yet. Symlinks are recreated, everything else is copied as a regular
// file.
func CopyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch {
		case entry.IsDir():
			info, err := entry.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		case entry.Type()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("copying symlink %s: %v", path, err)
			}
			return os.Symlink(link, target)
		default:
			return CopyFile(path, target)
		}
	})
}
