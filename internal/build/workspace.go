package build

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Workspace is the scratch directory owned by one build. It is created once
// at the start, handed to every component that needs scratch space (shadow
// files, expanded packages, the empty payload) and removed exactly once at
// the end, success or failure. Nothing in it survives the build.
type Workspace struct {
	root string
}

func NewWorkspace() (*Workspace, error) {
	root := filepath.Join(os.TempDir(), "instpkg-"+uuid.New().String())
	if err := os.Mkdir(root, 0700); err != nil {
		return nil, fmt.Errorf("creating scratch workspace: %v", err)
	}
	return &Workspace{root: root}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// Join returns a path inside the workspace.
func (w *Workspace) Join(parts ...string) string {
	return filepath.Join(append([]string{w.root}, parts...)...)
}

// Remove deletes the workspace. Failure is logged only; by this point the
// build outcome is already decided.
func (w *Workspace) Remove() {
	if err := os.RemoveAll(w.root); err != nil {
		logrus.Errorf("removing scratch workspace %s: %v", w.root, err)
	}
}
