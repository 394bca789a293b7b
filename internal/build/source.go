package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source is the resolved vendor installer. Exactly one representation is
// active: an application bundle wrapping an install image, or a bare image.
// Image always points at the mountable file.
type Source struct {
	AppBundle string
	Image     string
}

// ResolveSource validates the user-supplied installer path and locates the
// install image inside it. Nothing is mutated until both the image and, once
// mounted, the vendor manifest are known to exist.
func ResolveSource(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("source installer %s: %v", path, err)
	}

	if info.IsDir() {
		if !strings.HasSuffix(path, ".app") {
			return nil, fmt.Errorf("source installer %s is a directory but not an application bundle", path)
		}
		image := filepath.Join(path, "Contents", "SharedSupport", "InstallESD.dmg")
		if _, err := os.Stat(image); err != nil {
			return nil, fmt.Errorf("application bundle %s has no embedded install image: %v", path, err)
		}
		return &Source{AppBundle: path, Image: image}, nil
	}

	return &Source{Image: path}, nil
}
