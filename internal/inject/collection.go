package inject

import (
	"fmt"
	"path/filepath"

	"howett.net/plist"
)

// CollectionList is the ordered sequence of package references the automated
// installer consumes, as install-time absolute paths.
type CollectionList []string

// NewCollectionList builds the reference sequence for the given extra
// packages. The vendor manifest appears twice at the head: the shipped
// installer does the same and downstream tooling expects it, though no one
// has documented why. Kept for compatibility, not assumed load-bearing.
func NewCollectionList(packages []string) CollectionList {
	vendor := "/" + PackagesDir + "/" + VendorManifest
	list := CollectionList{vendor, vendor}
	for _, pkg := range packages {
		list = append(list, "/"+PackagesDir+"/"+filepath.Base(pkg))
	}
	return list
}

// Marshal serializes the list to its persisted property-list form.
func (l CollectionList) Marshal() ([]byte, error) {
	return plist.MarshalIndent([]string(l), plist.XMLFormat, "\t")
}

// ReadCollectionList parses a persisted collection back into the ordered
// sequence.
func ReadCollectionList(data []byte) (CollectionList, error) {
	var list []string
	if _, err := plist.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing package collection: %v", err)
	}
	return CollectionList(list), nil
}
