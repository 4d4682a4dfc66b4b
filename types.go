package manifestd

import (
	"encoding/json"
)

// Severity levels reported by the manifest rule engine.
const (
	LevelError      string = "error"
	LevelSuggestion string = "suggestion"
	LevelWarning    string = "warning"
)

// FormatBase is the manifest format for which start URLs are resolved
// against the site the manifest was fetched from.
const FormatBase string = "w3c"

// ManifestContent is the manifest body. Manifests are schemaless beyond a
// handful of well-known members, so the body stays a plain map and is
// replaced wholesale on update.
type ManifestContent map[string]any

// String returns the named member when it is present and string-typed.
func (m ManifestContent) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Icons returns the icon entries of the manifest, or nil when the member
// is absent or not a list.
func (m ManifestContent) Icons() []any {
	v, ok := m["icons"]
	if !ok {
		return nil
	}
	icons, ok := v.([]any)
	if !ok {
		return nil
	}
	return icons
}

// Issue is a single rule-engine finding projected onto a member group.
type Issue struct {
	Description string `json:"description"`
	Platform    string `json:"platform"`
	Code        string `json:"code"`
}

// IssueGroup collects the issues reported against one manifest member.
// Within a severity class there is at most one group per member.
type IssueGroup struct {
	Member string  `json:"member"`
	Issues []Issue `json:"issues"`
}

// Finding is a raw validation result from the rule engine.
type Finding struct {
	Member      string `json:"member"`
	Description string `json:"description"`
	Platform    string `json:"platform"`
	Code        string `json:"code"`
	Level       string `json:"level"`
}

// IconAsset is a generated icon blob attached to a record. Data carries the
// hex-encoded payload as produced by the image generation service.
type IconAsset struct {
	FileName  string `json:"fileName"`
	Generated bool   `json:"generated"`
	Data      string `json:"data"`
}

// Defaults holds record-level fallback values applied during normalization.
type Defaults struct {
	ShortName string `json:"short_name,omitempty"`
}

// ManifestRecord is the persisted, validated representation of a web-app
// manifest plus its aggregated validation findings. Records live in the
// cache store under their ID and expire after ManifestTTL; they are never
// deleted explicitly.
type ManifestRecord struct {
	ID            string          `json:"id"`
	Format        string          `json:"format,omitempty"`
	GeneratedURL  string          `json:"generatedUrl,omitempty"`
	GeneratedFrom string          `json:"generatedFrom,omitempty"`
	Content       ManifestContent `json:"content"`
	Assets        []IconAsset     `json:"assets,omitempty"`
	Default       Defaults        `json:"default,omitempty"`
	Errors        []IssueGroup    `json:"errors"`
	Suggestions   []IssueGroup    `json:"suggestions"`
	Warnings      []IssueGroup    `json:"warnings"`
}

// BuildAsset is an icon payload handed to the project builder, decoded
// from the hex representation carried on the record.
type BuildAsset struct {
	FileName  string `json:"fileName"`
	Generated bool   `json:"generated"`
	Data      []byte `json:"data"`
}

// BuildOptions parameterizes project creation and packaging.
type BuildOptions struct {
	Crosswalk bool         `json:"crosswalk"`
	Build     bool         `json:"build"`
	Assets    []BuildAsset `json:"assets"`
}

// RequestCheck describes one network request observed during the second
// page load of a probe. Both fields are nil when the request never
// produced a response.
type RequestCheck struct {
	FromServiceWorker *bool   `json:"fromSW"`
	RequestURL        *string `json:"requestURL"`
}

// ServiceWorkerReport is the ephemeral result of a service-worker probe.
// It is returned to the caller and never persisted.
type ServiceWorkerReport struct {
	HasSW   string          `json:"hasSW,omitempty"`
	Scope   string          `json:"scope,omitempty"`
	PushReg json.RawMessage `json:"pushReg"`
	Cache   []RequestCheck  `json:"cache"`
}
