// Package distribution extracts the reusable pieces of a vendor installer
// Distribution document: the title, the install script and the two check
// scripts. The fragments are kept as document subtrees so they can be grafted
// into a synthesized Distribution without re-parsing, and serialized as
// pretty-printed XML where text form is needed.
package distribution

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

const defaultTitle = "Install OS X"

// Fragments holds the pieces extracted from a vendor Distribution. Any of the
// subtrees may be nil when the source document lacks the element; the title
// always carries at least the generic default.
type Fragments struct {
	Title             string
	InstallScript     *etree.Element
	InstallationCheck *etree.Element
	VolumeCheck       *etree.Element
}

// InstallScriptText returns the install script fragment as a pretty-printed
// XML snippet, or "" when absent.
func (f Fragments) InstallScriptText() string { return serialize(f.InstallScript) }

// InstallationCheckText returns the installation-check fragment as a
// pretty-printed XML snippet, or "" when absent.
func (f Fragments) InstallationCheckText() string { return serialize(f.InstallationCheck) }

// VolumeCheckText returns the volume-check fragment as a pretty-printed XML
// snippet, or "" when absent.
func (f Fragments) VolumeCheckText() string { return serialize(f.VolumeCheck) }

func serialize(el *etree.Element) string {
	if el == nil {
		return ""
	}
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	doc.Indent(4)
	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// DefaultFragments is what the pipeline proceeds with when the vendor
// Distribution cannot be parsed at all: a generic title and no fragments.
func DefaultFragments() Fragments {
	return Fragments{Title: defaultTitle}
}

// ExtractFragments parses the Distribution at path. A missing element is
// tolerated and logged; a document that does not parse at all is an error.
func ExtractFragments(path string) (Fragments, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return Fragments{}, fmt.Errorf("parsing distribution %s: %v", path, err)
	}
	root := doc.Root()
	if root == nil {
		return Fragments{}, fmt.Errorf("distribution %s has no root element", path)
	}

	fragments := Fragments{Title: defaultTitle}

	if title := root.SelectElement("title"); title != nil && title.Text() != "" {
		fragments.Title = title.Text()
	} else {
		logrus.Warnf("%s has no title, using %q", path, defaultTitle)
	}

	for _, want := range []struct {
		name string
		dest **etree.Element
	}{
		{"script", &fragments.InstallScript},
		{"installation-check", &fragments.InstallationCheck},
		{"volume-check", &fragments.VolumeCheck},
	} {
		el := root.SelectElement(want.name)
		if el == nil {
			logrus.Warnf("%s has no %s element, continuing without it", path, want.name)
			continue
		}
		*want.dest = el.Copy()
	}

	return fragments, nil
}

// InstallerOptions is version information some vendor Distributions carry in
// their auxinfo dictionary. It duplicates what the base-system volume
// reports, so extraction is best-effort.
type InstallerOptions struct {
	OSVersion      string
	OSBuildVersion string
}

// ExtractInstallerOptions pulls the OS version and build out of the auxinfo
// dictionary. Parse failures and missing keys yield zero values, never an
// error.
func ExtractInstallerOptions(path string) InstallerOptions {
	var options InstallerOptions

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		logrus.Warnf("cannot parse %s for installer options: %v", path, err)
		return options
	}
	root := doc.Root()
	if root == nil {
		return options
	}

	auxinfo := root.FindElement("./auxinfo/dict")
	if auxinfo == nil {
		auxinfo = root.SelectElement("auxinfo")
	}
	if auxinfo == nil {
		return options
	}

	// auxinfo holds alternating <key>/<string> children, plist-style.
	key := ""
	for _, child := range auxinfo.ChildElements() {
		switch child.Tag {
		case "key":
			key = child.Text()
		case "string":
			switch key {
			case "VERSION":
				options.OSVersion = child.Text()
			case "BUILD":
				options.OSBuildVersion = child.Text()
			}
			key = ""
		}
	}

	return options
}
