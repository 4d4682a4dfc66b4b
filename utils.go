package manifestd

import (
	"strings"

	"github.com/google/uuid"
)

// NewManifestID generates the opaque 8-character identifier assigned to a
// record at creation.
func NewManifestID() string {
	return uuid.NewString()[:8]
}

// EnsureScheme prefixes a bare host with http:// so that callers may hand
// in either "example.com" or "http://example.com".
func EnsureScheme(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "http://" + raw
}
