package rest

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/pwaforge/manifestd"
	"github.com/pwaforge/manifestd/internal/present/rest/presenter"
	"github.com/pwaforge/manifestd/internal/usecase"
)

// Prober checks a live page for service-worker capabilities. The boolean
// result is false when no worker became ready within the probe timeout.
type Prober interface {
	Probe(ctx context.Context, url string) (*manifestd.ServiceWorkerReport, bool, error)
}

type Handler struct {
	manifest  *usecase.ManifestUsecase
	probe     Prober
	outputDir string
}

func NewHandler(manifest *usecase.ManifestUsecase, probe Prober, outputDir string) *Handler {
	return &Handler{
		manifest:  manifest,
		probe:     probe,
		outputDir: outputDir,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/manifests", h.handleCreate)
	e.GET("/api/manifests/:id", h.handleGet)
	e.PUT("/api/manifests/:id", h.handleUpdate)
	e.POST("/api/manifests/:id/build", h.handleBuild)
	e.POST("/api/manifests/:id/package", h.handlePackage)
	e.POST("/api/manifests/:id/images", h.handleGenerateImages)
	e.GET("/api/serviceworkers", h.handleServiceWorkerDescriptions)
	e.GET("/api/serviceworkers/check", h.handleProbe)
	e.GET("/api/serviceworkers/:id", h.handleServiceWorkerArchive)
}

type createRequest struct {
	SiteURL string `json:"siteUrl"`
}

// handleCreate ingests a manifest either from a site URL or from an
// uploaded manifest file.
func (h *Handler) handleCreate(c echo.Context) error {
	ctx := c.Request().Context()

	if file, err := c.FormFile("file"); err == nil {
		path, err := saveUpload(file)
		if err != nil {
			return presenter.InternalError(c, err)
		}
		defer os.Remove(path)

		record, err := h.manifest.CreateFromFile(ctx, path)
		if err != nil {
			return presenter.FromError(c, err)
		}
		return presenter.OK(c, record)
	}

	var req createRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.SiteURL == "" {
		return presenter.BadRequestMessage(c, "siteUrl or file is required")
	}

	record, err := h.manifest.CreateFromURL(ctx, req.SiteURL)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, record)
}

func (h *Handler) handleGet(c echo.Context) error {
	ctx := c.Request().Context()

	record, err := h.manifest.Get(ctx, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, record)
}

type updateRequest struct {
	Content manifestd.ManifestContent `json:"content"`
	Assets  []manifestd.IconAsset     `json:"assets,omitempty"`
}

func (h *Handler) handleUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Content == nil {
		return presenter.BadRequestMessage(c, "content is required")
	}

	record, err := h.manifest.Update(ctx, c.Param("id"), req.Content, req.Assets)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, record)
}

type buildRequest struct {
	Platforms []string `json:"platforms"`
	Href      string   `json:"href"`
}

func (h *Handler) handleBuild(c echo.Context) error {
	ctx := c.Request().Context()

	var req buildRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	record, err := h.manifest.Get(ctx, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	outputDir := filepath.Join(h.outputDir, record.ID)
	projectDir, err := h.manifest.CreateProject(ctx, record, outputDir, req.Platforms, req.Href)
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, echo.Map{"projectDir": projectDir})
}

type packageRequest struct {
	Platforms []string `json:"platforms"`
}

func (h *Handler) handlePackage(c echo.Context) error {
	ctx := c.Request().Context()

	var req packageRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	record, err := h.manifest.Get(ctx, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	outputDir := filepath.Join(h.outputDir, record.ID)
	options := manifestd.BuildOptions{Crosswalk: false, Build: false}
	packagePaths, err := h.manifest.PackageProject(ctx, req.Platforms, outputDir, options)
	if err != nil {
		return presenter.FromError(c, err)
	}

	return presenter.OK(c, echo.Map{"packagePaths": packagePaths})
}

func (h *Handler) handleGenerateImages(c echo.Context) error {
	ctx := c.Request().Context()

	record, err := h.manifest.Get(ctx, c.Param("id"))
	if err != nil {
		return presenter.FromError(c, err)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return presenter.BadRequestMessage(c, "image is required")
	}
	src, err := file.Open()
	if err != nil {
		return presenter.InternalError(c, err)
	}
	defer src.Close()
	image, err := io.ReadAll(src)
	if err != nil {
		return presenter.InternalError(c, err)
	}

	result, err := h.manifest.GenerateImages(ctx, image, record)
	if err != nil {
		return presenter.FromError(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleServiceWorkerDescriptions(c echo.Context) error {
	descriptions := h.manifest.ServiceWorkerDescriptions(c.Request().Context())
	if descriptions == nil {
		return presenter.OK(c, echo.Map{})
	}
	return c.JSONBlob(http.StatusOK, descriptions)
}

func (h *Handler) handleServiceWorkerArchive(c echo.Context) error {
	archive := h.manifest.ServiceWorkerArchive(c.Request().Context(), c.Param("id"))
	return presenter.OK(c, echo.Map{"archive": archive})
}

// handleProbe runs the one-shot service-worker probe. A page that never
// registers a worker within the timeout yields the literal false, not an
// error, so callers can branch on it.
func (h *Handler) handleProbe(c echo.Context) error {
	ctx := c.Request().Context()

	url := c.QueryParam("url")
	if url == "" {
		return presenter.BadRequestMessage(c, "url is required")
	}

	report, found, err := h.probe.Probe(ctx, url)
	if err != nil {
		return presenter.FromError(c, err)
	}
	if !found {
		return presenter.OK(c, false)
	}
	return presenter.OK(c, report)
}

func saveUpload(file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "manifest-upload-*")
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
