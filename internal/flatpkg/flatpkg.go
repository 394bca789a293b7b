// Package flatpkg expands flattened installer packages into their directory
// form so the Distribution and Resources inside them can be read.
package flatpkg

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/instpkg/instpkg/internal/command"
)

// Expanded is the directory form of a flattened package.
type Expanded struct {
	Root string
}

// Distribution returns the path of the expanded package's install manifest.
func (e Expanded) Distribution() string {
	return filepath.Join(e.Root, "Distribution")
}

// Resources returns the path of the expanded package's resources directory,
// which holds the localized string files.
func (e Expanded) Resources() string {
	return filepath.Join(e.Root, "Resources")
}

// Expand unpacks the flattened package at pkgPath into destDir. pkgutil
// refuses to expand over an existing directory, so destDir must not exist.
func Expand(runner command.Runner, pkgPath, destDir string) (Expanded, error) {
	if _, err := os.Stat(destDir); err == nil {
		return Expanded{}, fmt.Errorf("expand destination %s already exists", destDir)
	}

	if _, err := runner.Run("pkgutil", "--expand", pkgPath, destDir); err != nil {
		return Expanded{}, fmt.Errorf("expanding %s: %v", pkgPath, err)
	}

	return Expanded{Root: destDir}, nil
}
