package server

import (
	"net/http"
	"regexp"
)

const (
	// DefaultAPIVersion is used when the client does not ask for one.
	DefaultAPIVersion = "v1"

	// apiVersionHeader echoes the negotiated version.
	apiVersionHeader = "X-API-Version"
)

var (
	supportedAPIVersions = map[string]bool{"v1": true}

	// vendorMediaType matches application/vnd.edgeops.opsctl.<version>+json.
	vendorMediaType = regexp.MustCompile(`application/vnd\.edgeops\.opsctl\.(v\d+)\+json`)
)

// negotiateAPIVersion picks the API version from the Accept header,
// falling back to DefaultAPIVersion.
func negotiateAPIVersion(r *http.Request) string {
	m := vendorMediaType.FindStringSubmatch(r.Header.Get("Accept"))
	if len(m) != 2 || !isValidAPIVersion(m[1]) {
		return DefaultAPIVersion
	}
	return m[1]
}

func isValidAPIVersion(v string) bool {
	return supportedAPIVersions[v]
}
