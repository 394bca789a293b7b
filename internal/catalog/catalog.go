// Package catalog looks up the installer-compatibility-update package for a
// product version in a software-update catalog. The lookup is best-effort
// glue: a failure costs an optional helper package, never the build.
package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"howett.net/plist"
)

// DefaultURL is the public software-update catalog.
const DefaultURL = "https://swscan.apple.com/content/catalogs/others/index-1.sucatalog"

// HelperPackageVersion is what the generated helper package reports as its
// version. It is deliberately fixed regardless of the target OS version; the
// platform's update machinery expects exactly this value. Do not derive it
// from VersionInfo.
const HelperPackageVersion = "1.0"

type catalogIndex struct {
	Products map[string]struct {
		Packages []struct {
			URL  string `plist:"URL"`
			Size int64  `plist:"Size"`
		} `plist:"Packages"`
	} `plist:"Products"`
}

// Client fetches and searches one catalog.
type Client struct {
	http *retryablehttp.Client
	url  string
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &Client{http: client, url: url}
}

// CompatibilityUpdateURL returns the download URL of the installer
// compatibility update matching the given product version, or an error when
// the catalog has none.
func (c *Client) CompatibilityUpdateURL(productVersion string) (string, error) {
	resp, err := c.http.Get(c.url)
	if err != nil {
		return "", fmt.Errorf("fetching catalog %s: %v", c.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading catalog %s: %v", c.url, err)
	}

	return FindCompatibilityUpdate(data, productVersion)
}

// FindCompatibilityUpdate searches raw catalog bytes for the compatibility
// update package URL.
func FindCompatibilityUpdate(data []byte, productVersion string) (string, error) {
	var index catalogIndex
	if _, err := plist.Unmarshal(data, &index); err != nil {
		return "", fmt.Errorf("parsing catalog: %v", err)
	}

	for _, product := range index.Products {
		for _, pkg := range product.Packages {
			if strings.Contains(pkg.URL, "InstallerCompatibilityUpdate") &&
				strings.Contains(pkg.URL, productVersion) {
				return pkg.URL, nil
			}
		}
	}
	return "", fmt.Errorf("no installer compatibility update for %s in catalog", productVersion)
}
