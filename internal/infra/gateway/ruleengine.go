// Package gateway encapsulates the HTTP collaborators of the manifest
// lifecycle: the rule engine sidecar, the image generation service and the
// project builder.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/pwaforge/manifestd"
)

const defaultTimeout = 30 * time.Second

// RuleEngineGateway talks to the manifest rule engine over HTTP.
//
// When memoTTL is positive, validation responses are memoized for that
// window: the engine is deterministic, so identical content and platform
// sets yield identical findings, at the cost of findings up to memoTTL
// stale after a rule change in the engine. A zero memoTTL disables the
// memo and every validation pass reaches the engine.
type RuleEngineGateway struct {
	client    *http.Client
	baseURL   string
	imagesURL string
	memo      *gocache.Cache
}

func NewRuleEngineGateway(baseURL string, imagesURL string, memoTTL time.Duration) *RuleEngineGateway {
	var memo *gocache.Cache
	if memoTTL > 0 {
		memo = gocache.New(memoTTL, 2*memoTTL)
	}
	return &RuleEngineGateway{
		client:    &http.Client{Timeout: defaultTimeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		imagesURL: imagesURL,
		memo:      memo,
	}
}

func (g *RuleEngineGateway) ParseFromURL(ctx context.Context, siteURL string) (*manifestd.ManifestRecord, error) {
	var record manifestd.ManifestRecord
	err := g.postJSON(ctx, g.baseURL+"/api/manifests/parse-url", map[string]any{
		"siteUrl": siteURL,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (g *RuleEngineGateway) ParseFromFile(ctx context.Context, path string) (*manifestd.ManifestRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest file %s", path)
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/manifests/parse-file", file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var record manifestd.ManifestRecord
	if err := g.do(req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (g *RuleEngineGateway) Validate(ctx context.Context, record *manifestd.ManifestRecord, platforms []string) ([]manifestd.Finding, error) {

	var key string
	if g.memo != nil {
		if k, err := validationKey(record.Content, platforms); err == nil {
			key = k
			if cached, found := g.memo.Get(key); found {
				return cached.([]manifestd.Finding), nil
			}
		}
	}

	findings := []manifestd.Finding{}
	err := g.postJSON(ctx, g.baseURL+"/api/manifests/validate", map[string]any{
		"manifest":  record,
		"platforms": platforms,
	}, &findings)
	if err != nil {
		return nil, err
	}

	if key != "" {
		g.memo.Set(key, findings, gocache.DefaultExpiration)
	}

	return findings, nil
}

func (g *RuleEngineGateway) ResolveStartURL(ctx context.Context, siteURL string, record *manifestd.ManifestRecord) (*manifestd.ManifestRecord, error) {
	var normalized manifestd.ManifestRecord
	err := g.postJSON(ctx, g.baseURL+"/api/manifests/normalize-start-url", map[string]any{
		"siteUrl":  siteURL,
		"manifest": record,
	}, &normalized)
	if err != nil {
		return nil, err
	}
	return &normalized, nil
}

func (g *RuleEngineGateway) GenerateImages(ctx context.Context, image []byte, content manifestd.ManifestContent) (*manifestd.ManifestRecord, error) {
	var record manifestd.ManifestRecord
	err := g.postJSON(ctx, g.imagesURL, map[string]any{
		"image":    image,
		"manifest": content,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (g *RuleEngineGateway) ServiceWorkerArchive(ctx context.Context, id string) (string, error) {
	var result struct {
		Archive string `json:"archive"`
	}
	err := g.getJSON(ctx, g.baseURL+"/api/serviceworkers/"+id, &result)
	if err != nil {
		return "", err
	}
	return result.Archive, nil
}

func (g *RuleEngineGateway) ServiceWorkerDescriptions(ctx context.Context) (json.RawMessage, error) {
	var result json.RawMessage
	err := g.getJSON(ctx, g.baseURL+"/api/serviceworkers", &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *RuleEngineGateway) postJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return g.do(req, out)
}

func (g *RuleEngineGateway) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	return g.do(req, out)
}

func (g *RuleEngineGateway) do(req *http.Request, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "rule engine request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("rule engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode rule engine response")
	}
	return nil
}

func validationKey(content manifestd.ManifestContent, platforms []string) (string, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(b, []byte(strings.Join(platforms, ","))...))
	return hex.EncodeToString(sum[:]), nil
}
