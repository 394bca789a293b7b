package pkgbundle

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/instpkg/instpkg/internal/distribution"
)

// The vendor install script gates command-line installs on this variable.
// Renaming it means the guard never matches: the wrapped installer only works
// from the full installer environment, so command-line installs are
// intentionally disabled.
const (
	cmdlineGuard         = "arg_cmdline"
	cmdlineGuardDisabled = "arg_cmdline_disabled"
)

// WriteDistribution synthesizes the bundle's installer script from the
// extracted vendor fragments. The document is built as a tree and serialized
// once, so untrusted fragment text can never produce malformed markup.
func (a *Assembler) WriteDistribution(fragments distribution.Fragments, packageID string, installedSizeKB int64) error {
	if packageID == "" {
		packageID = DefaultPackageID
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	root := doc.CreateElement("installer-gui-script")
	root.CreateAttr("minSpecVersion", "1")

	root.CreateElement("title").SetText(fragments.Title)

	options := root.CreateElement("options")
	options.CreateAttr("customize", "never")
	options.CreateAttr("allow-external-scripts", "yes")
	options.CreateAttr("rootVolumeOnly", "false")

	if fragments.InstallScript != nil {
		script := fragments.InstallScript.Copy()
		disableCmdlineInstall(script)
		root.AddChild(script)
	}
	if fragments.InstallationCheck != nil {
		root.AddChild(fragments.InstallationCheck.Copy())
	}
	if fragments.VolumeCheck != nil {
		root.AddChild(fragments.VolumeCheck.Copy())
	}

	outline := root.CreateElement("choices-outline")
	outline.CreateElement("line").CreateAttr("choice", "install")

	choice := root.CreateElement("choice")
	choice.CreateAttr("id", "install")
	choice.CreateAttr("title", fragments.Title)
	choice.CreateAttr("start_selected", "true")
	choice.CreateAttr("start_enabled", "true")
	choice.CreateAttr("selected", "true")
	choice.CreateElement("pkg-ref").CreateAttr("id", packageID)

	pkgRef := root.CreateElement("pkg-ref")
	pkgRef.CreateAttr("id", packageID)
	pkgRef.CreateAttr("auth", "Root")
	pkgRef.CreateAttr("installKBytes", fmt.Sprintf("%d", installedSizeKB))
	pkgRef.SetText("file:./Contents/Archive.pax.gz")

	doc.Indent(4)
	path := filepath.Join(a.Path, contentsDir, "distribution.dist")
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("writing distribution: %v", err)
	}
	return nil
}

// disableCmdlineInstall renames the command-line guard variable everywhere in
// the script element's character data.
func disableCmdlineInstall(script *etree.Element) {
	for _, token := range script.Child {
		if data, ok := token.(*etree.CharData); ok {
			data.Data = strings.ReplaceAll(data.Data, cmdlineGuard, cmdlineGuardDisabled)
		}
	}
	for _, child := range script.ChildElements() {
		disableCmdlineInstall(child)
	}
}
