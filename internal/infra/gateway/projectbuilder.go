package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/pwaforge/manifestd"
)

// ProjectBuilderGateway talks to the project builder collaborator, which
// scaffolds per-platform native app projects and packages them. Its
// outputs are opaque paths on a shared filesystem.
type ProjectBuilderGateway struct {
	client  *http.Client
	baseURL string
}

func NewProjectBuilderGateway(baseURL string) *ProjectBuilderGateway {
	return &ProjectBuilderGateway{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (g *ProjectBuilderGateway) CreateApps(ctx context.Context, record *manifestd.ManifestRecord, outputDir string, platforms []string, options manifestd.BuildOptions, sourceHref string) (string, error) {
	var result struct {
		ProjectDir string `json:"projectDir"`
	}
	err := g.post(ctx, g.baseURL+"/api/projects", map[string]any{
		"manifest":   record,
		"outputDir":  outputDir,
		"platforms":  platforms,
		"options":    options,
		"sourceHref": sourceHref,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.ProjectDir, nil
}

func (g *ProjectBuilderGateway) PackageApps(ctx context.Context, platforms []string, outputDir string, options manifestd.BuildOptions) ([]string, error) {
	var result struct {
		PackagePaths []string `json:"packagePaths"`
	}
	err := g.post(ctx, g.baseURL+"/api/packages", map[string]any{
		"platforms": platforms,
		"outputDir": outputDir,
		"options":   options,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.PackagePaths, nil
}

func (g *ProjectBuilderGateway) post(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "project builder request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("project builder returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode project builder response")
	}
	return nil
}
