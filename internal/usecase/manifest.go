package usecase

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/pwaforge/manifestd"
	"github.com/pwaforge/manifestd/internal/domain"
)

// ManifestUsecase owns the cache-backed lifecycle of manifest records:
// creation from a URL or file, validation, caller-driven updates and
// persistence with a fixed TTL. The cache provides no locking; concurrent
// updates to one id race and the last write wins.
type ManifestUsecase struct {
	engine    RuleEngine
	cache     CacheStore
	builder   ProjectBuilder
	catalog   ServiceWorkerCatalog
	platforms []string
}

func NewManifestUsecase(
	engine RuleEngine,
	cache CacheStore,
	builder ProjectBuilder,
	catalog ServiceWorkerCatalog,
	platforms []string,
) *ManifestUsecase {
	return &ManifestUsecase{
		engine:    engine,
		cache:     cache,
		builder:   builder,
		catalog:   catalog,
		platforms: platforms,
	}
}

// CreateFromURL fetches the manifest of a site, validates it and persists
// the resulting record. Bare hosts are treated like http:// URLs. For base
// format manifests the start URL is additionally resolved against the site
// before validation.
func (uc *ManifestUsecase) CreateFromURL(ctx context.Context, siteURL string) (*manifestd.ManifestRecord, error) {

	siteURL = manifestd.EnsureScheme(siteURL)

	record, err := uc.engine.ParseFromURL(ctx, siteURL)
	if err != nil {
		return nil, domain.FetchError{Source: siteURL, Err: err}
	}

	if record.Format == manifestd.FormatBase {
		record, err = uc.engine.ResolveStartURL(ctx, siteURL, record)
		if err != nil {
			return nil, domain.FetchError{Source: siteURL, Err: err}
		}
	}

	record.ID = manifestd.NewManifestID()

	record, err = uc.Validate(ctx, record)
	if err != nil {
		return nil, err
	}

	if err := uc.persist(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// CreateFromFile is the file-upload twin of CreateFromURL. Start URLs are
// never resolved for file-sourced manifests.
func (uc *ManifestUsecase) CreateFromFile(ctx context.Context, path string) (*manifestd.ManifestRecord, error) {

	record, err := uc.engine.ParseFromFile(ctx, path)
	if err != nil {
		return nil, domain.FetchError{Source: path, Err: err}
	}

	record.ID = manifestd.NewManifestID()

	record, err = uc.Validate(ctx, record)
	if err != nil {
		return nil, err
	}

	if err := uc.persist(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// Get loads a record from the cache. Expired and unknown ids yield
// domain.ErrNotFound.
func (uc *ManifestUsecase) Get(ctx context.Context, id string) (*manifestd.ManifestRecord, error) {

	raw, err := uc.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var record manifestd.ManifestRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, errors.Wrap(err, "failed to decode cached manifest")
	}

	return &record, nil
}

// Update replaces the record's content wholesale, revalidates and persists
// it. When assets is nil, existing assets survive only if the updated icon
// list still references at least one generated icon; a non-nil assets
// argument replaces them outright.
func (uc *ManifestUsecase) Update(ctx context.Context, id string, updates manifestd.ManifestContent, assets []manifestd.IconAsset) (*manifestd.ManifestRecord, error) {

	record, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	record.Content = updates

	if assets != nil {
		record.Assets = assets
	} else if !hasGeneratedIcon(updates) {
		record.Assets = nil
	}

	record, err = uc.Validate(ctx, record)
	if err != nil {
		return nil, err
	}

	if err := uc.persist(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// Normalize applies presentation rules to the record and resolves its
// start URL through the rule engine. Hyphens in name and short_name become
// spaces; orientation is lower-cased, defaulting to portrait.
func (uc *ManifestUsecase) Normalize(ctx context.Context, record *manifestd.ManifestRecord) (*manifestd.ManifestRecord, error) {

	content := record.Content

	if orientation, ok := content.String("orientation"); ok && orientation != "" {
		content["orientation"] = strings.ToLower(orientation)
	} else {
		content["orientation"] = "portrait"
	}

	if shortName, ok := content.String("short_name"); ok && shortName != "" && strings.Contains(shortName, "-") {
		content["short_name"] = strings.ReplaceAll(shortName, "-", " ")
	} else if name, ok := content.String("name"); ok && name != "" {
		// Historic behavior: this branch compares and never assigns, so a
		// missing short_name is not derived from name.
		_ = shortName == name
	} else if record.Default.ShortName != "" {
		content["short_name"] = record.Default.ShortName
	}

	if name, ok := content.String("name"); ok && name != "" && strings.Contains(name, "-") {
		content["name"] = strings.ReplaceAll(name, "-", " ")
	}

	startURL, _ := content.String("start_url")
	normalized, err := uc.engine.ResolveStartURL(ctx, startURL, record)
	if err != nil {
		return nil, domain.NormalizationError{Err: err}
	}

	mergeRecord(record, normalized)

	return record, nil
}

// CreateProject hands a validated record to the project builder. The id is
// stripped and the record is tagged with its provenance; asset payloads are
// hex-decoded before submission.
func (uc *ManifestUsecase) CreateProject(ctx context.Context, record *manifestd.ManifestRecord, outputDir string, platforms []string, sourceHref string) (string, error) {

	clean := *record
	clean.ID = ""
	clean.GeneratedFrom = "Website Wizard"

	assets := []manifestd.BuildAsset{}
	for _, asset := range record.Assets {
		data, err := hex.DecodeString(asset.Data)
		if err != nil {
			return "", domain.ProjectBuildError{Err: errors.Wrapf(err, "bad asset payload %s", asset.FileName)}
		}
		assets = append(assets, manifestd.BuildAsset{
			FileName:  asset.FileName,
			Generated: asset.Generated,
			Data:      data,
		})
	}

	options := manifestd.BuildOptions{
		Crosswalk: false,
		Build:     false,
		Assets:    assets,
	}

	projectDir, err := uc.builder.CreateApps(ctx, &clean, outputDir, platforms, options, sourceHref)
	if err != nil {
		return "", domain.ProjectBuildError{Err: err}
	}

	return projectDir, nil
}

// PackageProject packages previously created projects.
func (uc *ManifestUsecase) PackageProject(ctx context.Context, platforms []string, outputDir string, options manifestd.BuildOptions) ([]string, error) {

	packagePaths, err := uc.builder.PackageApps(ctx, platforms, outputDir, options)
	if err != nil {
		return nil, domain.PackageError{Err: err}
	}

	return packagePaths, nil
}

// GenerateImages invokes the remote image generation service for the
// record's content and returns the engine's result.
func (uc *ManifestUsecase) GenerateImages(ctx context.Context, image []byte, record *manifestd.ManifestRecord) (*manifestd.ManifestRecord, error) {

	result, err := uc.engine.GenerateImages(ctx, image, record.Content)
	if err != nil {
		return nil, errors.Wrap(err, "image generation failed")
	}

	return result, nil
}

// ServiceWorkerArchive resolves the download location of a precanned
// service worker. Catalog lookups are best effort; failures yield an empty
// result, not an error.
func (uc *ManifestUsecase) ServiceWorkerArchive(ctx context.Context, id string) string {
	result, _ := uc.catalog.ServiceWorkerArchive(ctx, id)
	return result
}

// ServiceWorkerDescriptions lists the precanned service workers. Best
// effort, like ServiceWorkerArchive.
func (uc *ManifestUsecase) ServiceWorkerDescriptions(ctx context.Context) json.RawMessage {
	result, _ := uc.catalog.ServiceWorkerDescriptions(ctx)
	return result
}

func (uc *ManifestUsecase) persist(ctx context.Context, record *manifestd.ManifestRecord) error {

	b, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to encode manifest")
	}

	return uc.cache.Set(ctx, record.ID, string(b), domain.ManifestTTL)
}

func hasGeneratedIcon(content manifestd.ManifestContent) bool {
	for _, entry := range content.Icons() {
		icon, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if generated, ok := icon["generated"].(bool); ok && generated {
			return true
		}
	}
	return false
}

// mergeRecord overlays the engine's normalization result onto the record,
// keeping the record's identity.
func mergeRecord(record *manifestd.ManifestRecord, normalized *manifestd.ManifestRecord) {
	if normalized == nil {
		return
	}
	if normalized.Content != nil {
		record.Content = normalized.Content
	}
	if normalized.Format != "" {
		record.Format = normalized.Format
	}
	if normalized.GeneratedURL != "" {
		record.GeneratedURL = normalized.GeneratedURL
	}
}
