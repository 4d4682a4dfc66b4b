package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pwaforge/manifestd"
	"github.com/pwaforge/manifestd/internal/domain"
	"github.com/pwaforge/manifestd/internal/usecase"
)

// --- mocks ---

type mockEngine struct {
	record *manifestd.ManifestRecord
}

func (m *mockEngine) ParseFromURL(ctx context.Context, siteURL string) (*manifestd.ManifestRecord, error) {
	return m.record, nil
}
func (m *mockEngine) ParseFromFile(ctx context.Context, path string) (*manifestd.ManifestRecord, error) {
	return m.record, nil
}
func (m *mockEngine) Validate(ctx context.Context, record *manifestd.ManifestRecord, platforms []string) ([]manifestd.Finding, error) {
	return nil, nil
}
func (m *mockEngine) ResolveStartURL(ctx context.Context, siteURL string, record *manifestd.ManifestRecord) (*manifestd.ManifestRecord, error) {
	return record, nil
}
func (m *mockEngine) GenerateImages(ctx context.Context, image []byte, content manifestd.ManifestContent) (*manifestd.ManifestRecord, error) {
	return m.record, nil
}

type mockCache struct {
	data map[string]string
}

func (m *mockCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", domain.NotFoundError{Resource: "manifest"}
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

type mockBuilder struct{}

func (m *mockBuilder) CreateApps(ctx context.Context, record *manifestd.ManifestRecord, outputDir string, platforms []string, options manifestd.BuildOptions, sourceHref string) (string, error) {
	return outputDir, nil
}
func (m *mockBuilder) PackageApps(ctx context.Context, platforms []string, outputDir string, options manifestd.BuildOptions) ([]string, error) {
	return []string{outputDir + "/app.zip"}, nil
}

type mockCatalog struct{}

func (m *mockCatalog) ServiceWorkerArchive(ctx context.Context, id string) (string, error) {
	return "http://cdn/sw-" + id + ".zip", nil
}
func (m *mockCatalog) ServiceWorkerDescriptions(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[{"id":1}]`), nil
}

type mockProber struct {
	report *manifestd.ServiceWorkerReport
	found  bool
	err    error
}

func (m *mockProber) Probe(ctx context.Context, url string) (*manifestd.ServiceWorkerReport, bool, error) {
	return m.report, m.found, m.err
}

func newTestHandler(prober Prober) (*Handler, *mockCache) {
	cache := &mockCache{data: map[string]string{}}
	engine := &mockEngine{record: &manifestd.ManifestRecord{Content: manifestd.ManifestContent{"name": "app"}}}
	uc := usecase.NewManifestUsecase(engine, cache, &mockBuilder{}, &mockCatalog{}, []string{"android"})
	return NewHandler(uc, prober, "/tmp/output"), cache
}

// --- tests ---

func TestHandleCreateFromSiteURL(t *testing.T) {
	h, cache := newTestHandler(&mockProber{})
	e := echo.New()
	h.RegisterRoutes(e)

	body, _ := json.Marshal(map[string]string{"siteUrl": "example.com"})
	req := httptest.NewRequest(http.MethodPost, "/api/manifests", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var record manifestd.ManifestRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(record.ID) != 8 {
		t.Fatalf("expected 8-character id, got %q", record.ID)
	}
	if _, ok := cache.data[record.ID]; !ok {
		t.Fatalf("record was not persisted")
	}
}

func TestHandleCreateRequiresInput(t *testing.T) {
	h, _ := newTestHandler(&mockProber{})
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/api/manifests", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleUpdateUnknownID(t *testing.T) {
	h, _ := newTestHandler(&mockProber{})
	e := echo.New()
	h.RegisterRoutes(e)

	body, _ := json.Marshal(map[string]any{"content": map[string]any{"name": "new"}})
	req := httptest.NewRequest(http.MethodPut, "/api/manifests/deadbeef", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleProbeNoServiceWorker(t *testing.T) {
	h, _ := newTestHandler(&mockProber{found: false})
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/serviceworkers/check?url=http://example.com", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "false" {
		t.Fatalf("expected literal false body, got %s", rec.Body.String())
	}
}

func TestHandleProbeReport(t *testing.T) {
	fromSW := true
	url := "http://example.com/app.js"
	report := &manifestd.ServiceWorkerReport{
		HasSW:   "http://example.com/sw.js",
		Scope:   "http://example.com/",
		PushReg: json.RawMessage(`null`),
		Cache: []manifestd.RequestCheck{
			{FromServiceWorker: &fromSW, RequestURL: &url},
		},
	}
	h, _ := newTestHandler(&mockProber{report: report, found: true})
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/serviceworkers/check?url=http://example.com", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got manifestd.ServiceWorkerReport
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if got.HasSW != report.HasSW || got.Scope != report.Scope {
		t.Fatalf("report fields lost: %+v", got)
	}
	if len(got.Cache) != 1 || got.Cache[0].RequestURL == nil || *got.Cache[0].RequestURL != url {
		t.Fatalf("cache entries lost: %+v", got.Cache)
	}
}

func TestHandleProbeRequiresURL(t *testing.T) {
	h, _ := newTestHandler(&mockProber{})
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/serviceworkers/check", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleBuildAndPackage(t *testing.T) {
	h, cache := newTestHandler(&mockProber{})
	e := echo.New()
	h.RegisterRoutes(e)

	seeded, _ := json.Marshal(&manifestd.ManifestRecord{
		ID:      "abcd1234",
		Content: manifestd.ManifestContent{"name": "app"},
	})
	cache.data["abcd1234"] = string(seeded)

	body, _ := json.Marshal(map[string]any{"platforms": []string{"android"}, "href": "http://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/api/manifests/abcd1234/build", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "projectDir") {
		t.Fatalf("missing projectDir in response: %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/manifests/abcd1234/package", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "app.zip") {
		t.Fatalf("missing package paths in response: %s", rec.Body.String())
	}
}
