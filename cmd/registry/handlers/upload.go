package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/stackforge/terraform-registry/cmd/registry/service"
	"github.com/stackforge/terraform-registry/common/bootstrap"
)

// maxArchiveBytes bounds how much archive a single upload may carry
const maxArchiveBytes = 64 << 20

// UploadHandler serves the publication API
type UploadHandler struct {
	components *bootstrap.Components
	uploader   *service.UploadCoordinator
	resolver   *service.Resolver
	docs       *service.DocsService
	versions   service.VersionStore
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(
	components *bootstrap.Components,
	uploader *service.UploadCoordinator,
	resolver *service.Resolver,
	docs *service.DocsService,
	versions service.VersionStore,
) *UploadHandler {
	return &UploadHandler{
		components: components,
		uploader:   uploader,
		resolver:   resolver,
		docs:       docs,
		versions:   versions,
	}
}

// Upload accepts a module archive and publishes it as a new version.
// POST /api/modules/:namespace/:name/:provider/:version/upload
func (h *UploadHandler) Upload(c echo.Context) error {
	namespace, name, provider := tripleParams(c)
	version := c.Param("version")

	if h.components.Telemetry != nil {
		defer h.components.Telemetry.RecordDuration("module_upload", time.Now())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  "validation_failed",
			"errors": map[string]string{"file": "multipart field 'file' is required"},
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}
	defer file.Close()

	archive, err := io.ReadAll(io.LimitReader(file, maxArchiveBytes+1))
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}
	if len(archive) > maxArchiveBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
			"error":   "archive_too_large",
			"message": "archive exceeds the maximum allowed size",
		})
	}

	result, err := h.uploader.Upload(c.Request().Context(), service.UploadRequest{
		Namespace: namespace,
		Name:      name,
		Provider:  provider,
		Version:   version,
		Archive:   archive,
	})
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	if h.components.Telemetry != nil {
		h.components.Telemetry.RecordEvent("module_published", map[string]any{
			"module_id": result.Module.ID,
			"version":   result.Version.Version,
		})
	}

	response := map[string]interface{}{
		"status":        "success",
		"module_id":     result.Module.ID,
		"version":       result.Version.Version,
		"documentation": result.Version.Documentation,
	}
	if result.Version.RepositoryURL != nil {
		response["repository_url"] = *result.Version.RepositoryURL
	}

	return c.JSON(http.StatusOK, response)
}

// PatchDocs applies a JSON merge patch to a version's documentation.
// This is the write-back path for the external docs generator.
// PATCH /api/modules/:namespace/:name/:provider/:version/docs
func (h *UploadHandler) PatchDocs(c echo.Context) error {
	namespace, name, provider := tripleParams(c)
	version := c.Param("version")
	ctx := c.Request().Context()

	resolved, err := h.resolver.ResolveVersion(ctx, namespace, name, provider, version)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	patch, err := io.ReadAll(io.LimitReader(c.Request().Body, maxArchiveBytes))
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	patched, err := h.docs.ApplyMergePatch(resolved.Documentation, patch)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "invalid_patch",
			"message": "documentation patch could not be applied",
		})
	}

	if err := h.versions.UpdateDocumentation(ctx, resolved.ID, patched); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return writeServiceError(c, h.components.Logger, service.ErrNotFound)
		}
		return writeServiceError(c, h.components.Logger, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "success",
		"documentation": patched,
	})
}
