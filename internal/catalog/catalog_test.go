package catalog

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogFixture = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>Products</key>
	<dict>
		<key>zzz1</key>
		<dict>
			<key>Packages</key>
			<array>
				<dict>
					<key>URL</key>
					<string>https://updates.example.com/osx/Safari9.pkg</string>
					<key>Size</key>
					<integer>1024</integer>
				</dict>
			</array>
		</dict>
		<key>zzz2</key>
		<dict>
			<key>Packages</key>
			<array>
				<dict>
					<key>URL</key>
					<string>https://updates.example.com/osx/InstallerCompatibilityUpdate_10.9.2.pkg</string>
					<key>Size</key>
					<integer>2048</integer>
				</dict>
			</array>
		</dict>
	</dict>
</dict>
</plist>
`

func TestFindCompatibilityUpdate(t *testing.T) {
	url, err := FindCompatibilityUpdate([]byte(catalogFixture), "10.9.2")
	require.NoError(t, err)
	assert.Equal(t, "https://updates.example.com/osx/InstallerCompatibilityUpdate_10.9.2.pkg", url)
}

func TestFindCompatibilityUpdateNoMatch(t *testing.T) {
	_, err := FindCompatibilityUpdate([]byte(catalogFixture), "10.8.5")
	assert.ErrorContains(t, err, "no installer compatibility update for 10.8.5")
}

func TestFindCompatibilityUpdateMalformed(t *testing.T) {
	_, err := FindCompatibilityUpdate([]byte("not a plist"), "10.9.2")
	assert.Error(t, err)
}

func TestCompatibilityUpdateURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(catalogFixture))
	}))
	defer server.Close()

	url, err := NewClient(server.URL).CompatibilityUpdateURL("10.9.2")
	require.NoError(t, err)
	assert.Contains(t, url, "InstallerCompatibilityUpdate_10.9.2")
}

func TestHelperPackageVersionIsFixed(t *testing.T) {
	// The reported helper version never tracks the target OS version.
	assert.Equal(t, "1.0", HelperPackageVersion)
}
