package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/stackforge/terraform-registry/cmd/registry/service"
	"github.com/stackforge/terraform-registry/common/bootstrap"
	"github.com/stackforge/terraform-registry/common/storage"
)

// ModuleHandler serves the registry protocol read endpoints
type ModuleHandler struct {
	components *bootstrap.Components
	resolver   *service.Resolver
	stats      *service.StatsService
	search     *service.SearchService
	store      storage.Store
}

// NewModuleHandler creates a new module handler
func NewModuleHandler(
	components *bootstrap.Components,
	resolver *service.Resolver,
	stats *service.StatsService,
	search *service.SearchService,
	store storage.Store,
) *ModuleHandler {
	return &ModuleHandler{
		components: components,
		resolver:   resolver,
		stats:      stats,
		search:     search,
		store:      store,
	}
}

// ListVersions returns all resolvable versions, descending by semver.
// GET /v1/modules/:namespace/:name/:provider/versions
func (h *ModuleHandler) ListVersions(c echo.Context) error {
	namespace, name, provider := tripleParams(c)
	ctx := c.Request().Context()

	cacheKey := service.VersionsCacheKey(namespace, name, provider)
	if h.components.Cache != nil {
		if cached, hit, _ := h.components.Cache.Get(ctx, cacheKey); hit {
			return c.JSONBlob(http.StatusOK, cached)
		}
	}

	ordered, err := h.resolver.ListVersions(ctx, namespace, name, provider)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	doc := NewVersionsDocument(ordered)

	if h.components.Cache != nil {
		if payload, err := json.Marshal(doc); err == nil {
			h.components.Cache.Set(ctx, cacheKey, payload, h.components.Config.Cache.DefaultTTL)
		}
	}

	return c.JSON(http.StatusOK, doc)
}

// GetModule returns the latest version's module object.
// GET /v1/modules/:namespace/:name/:provider
func (h *ModuleHandler) GetModule(c echo.Context) error {
	namespace, name, provider := tripleParams(c)
	ctx := c.Request().Context()

	latest, err := h.resolver.ResolveLatest(ctx, namespace, name, provider)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	module, err := h.resolver.GetModule(ctx, namespace, name, provider)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	downloads := h.stats.Downloads(ctx, module.ID)
	return c.JSON(http.StatusOK, NewModuleDetail(module, latest, downloads))
}

// GetModuleVersion returns one specific version's module object.
// GET /v1/modules/:namespace/:name/:provider/:version
func (h *ModuleHandler) GetModuleVersion(c echo.Context) error {
	namespace, name, provider := tripleParams(c)
	version := c.Param("version")
	ctx := c.Request().Context()

	resolved, err := h.resolver.ResolveVersion(ctx, namespace, name, provider, version)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	module, err := h.resolver.GetModule(ctx, namespace, name, provider)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	downloads := h.stats.Downloads(ctx, module.ID)
	return c.JSON(http.StatusOK, NewModuleDetail(module, resolved, downloads))
}

// Download answers Terraform's download request with the source path in
// the X-Terraform-Get header, no body.
// GET /v1/modules/:namespace/:name/:provider/:version/download
func (h *ModuleHandler) Download(c echo.Context) error {
	namespace, name, provider := tripleParams(c)
	version := c.Param("version")
	ctx := c.Request().Context()

	resolved, err := h.resolver.ResolveVersion(ctx, namespace, name, provider, version)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	h.stats.TrackDownload(ctx, resolved.ModuleID)

	c.Response().Header().Set("X-Terraform-Get", ArchiveSourcePath(namespace, name, provider, version))
	return c.NoContent(http.StatusNoContent)
}

// Archive streams the stored archive bytes for a version.
// GET /v1/modules/:namespace/:name/:provider/:version/archive
func (h *ModuleHandler) Archive(c echo.Context) error {
	namespace, name, provider := tripleParams(c)
	version := c.Param("version")
	ctx := c.Request().Context()

	resolved, err := h.resolver.ResolveVersion(ctx, namespace, name, provider, version)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	archive, err := h.store.Get(ctx, resolved.ContentLocator)
	if errors.Is(err, storage.ErrNotFound) {
		// The locator invariant is broken: metadata points at content
		// that is gone. Exclude the record rather than crash.
		return writeServiceError(c, h.components.Logger, &service.ConsistencyError{
			ModuleID: resolved.ModuleID,
			Detail:   "version " + resolved.Version + " locator does not resolve",
		})
	}
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	return c.Blob(http.StatusOK, "application/zip", archive)
}

// Stats returns the download counters for a module.
// GET /v1/modules/:namespace/:name/:provider/stats
func (h *ModuleHandler) Stats(c echo.Context) error {
	namespace, name, provider := tripleParams(c)
	ctx := c.Request().Context()

	module, err := h.resolver.GetModule(ctx, namespace, name, provider)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	return c.JSON(http.StatusOK, h.stats.ModuleStats(ctx, module.ID))
}

// Search lists modules matching a query.
// GET /v1/modules/search?q=&namespace=&provider=&limit=&offset=
func (h *ModuleHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	query := c.QueryParam("q")
	namespace := c.QueryParam("namespace")
	provider := c.QueryParam("provider")
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	cacheKey := service.SearchCacheKey(query, namespace, provider, limit, offset)
	if h.components.Cache != nil {
		if cached, hit, _ := h.components.Cache.Get(ctx, cacheKey); hit {
			return c.JSONBlob(http.StatusOK, cached)
		}
	}

	results, err := h.search.Search(ctx, query, namespace, provider, limit, offset)
	if err != nil {
		return writeServiceError(c, h.components.Logger, err)
	}

	response := map[string]interface{}{"modules": results}

	if h.components.Cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			h.components.Cache.Set(ctx, cacheKey, payload, h.components.Config.Cache.DefaultTTL)
		}
	}

	return c.JSON(http.StatusOK, response)
}

func tripleParams(c echo.Context) (namespace, name, provider string) {
	return c.Param("namespace"), c.Param("name"), c.Param("provider")
}
