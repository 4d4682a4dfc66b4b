package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pwaforge/manifestd"
)

// RuleEngine is the external manifest rule engine. It parses manifests,
// validates them against platform rule sets, resolves start URLs and
// drives the remote image generation service.
type RuleEngine interface {
	ParseFromURL(ctx context.Context, siteURL string) (*manifestd.ManifestRecord, error)
	ParseFromFile(ctx context.Context, path string) (*manifestd.ManifestRecord, error)
	Validate(ctx context.Context, record *manifestd.ManifestRecord, platforms []string) ([]manifestd.Finding, error)
	ResolveStartURL(ctx context.Context, siteURL string, record *manifestd.ManifestRecord) (*manifestd.ManifestRecord, error)
	GenerateImages(ctx context.Context, image []byte, content manifestd.ManifestContent) (*manifestd.ManifestRecord, error)
}

// CacheStore is the expiring key-value store records are persisted to.
// Get returns domain.ErrNotFound for absent or expired keys. The store
// provides no cross-client locking; concurrent writers to one key race
// and the last write wins.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// ProjectBuilder turns a validated manifest into per-platform native app
// projects and packages them. Its outputs are opaque filesystem artifacts.
type ProjectBuilder interface {
	CreateApps(ctx context.Context, record *manifestd.ManifestRecord, outputDir string, platforms []string, options manifestd.BuildOptions, sourceHref string) (string, error)
	PackageApps(ctx context.Context, platforms []string, outputDir string, options manifestd.BuildOptions) ([]string, error)
}

// ServiceWorkerCatalog lists the precanned service workers the rule engine
// ships and their descriptions.
type ServiceWorkerCatalog interface {
	ServiceWorkerArchive(ctx context.Context, id string) (string, error)
	ServiceWorkerDescriptions(ctx context.Context) (json.RawMessage, error)
}
