package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stackforge/terraform-registry/common/bootstrap"
)

// DiscoveryHandler serves the registry protocol discovery document
type DiscoveryHandler struct {
	components *bootstrap.Components
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(components *bootstrap.Components) *DiscoveryHandler {
	return &DiscoveryHandler{components: components}
}

// Discovery returns the service discovery document.
// GET /.well-known/terraform.json
//
// Behind a proxy the forwarded host and scheme produce an absolute URL;
// otherwise the root-relative modules path is advertised.
func (h *DiscoveryHandler) Discovery(c echo.Context) error {
	modulesURL := h.components.Config.Registry.ModulesPath

	if host := c.Request().Header.Get("X-Forwarded-Host"); host != "" {
		scheme := c.Request().Header.Get("X-Forwarded-Proto")
		if scheme == "" {
			scheme = "https"
		}
		modulesURL = fmt.Sprintf("%s://%s%s", scheme, host, modulesURL)
	}

	return c.JSON(http.StatusOK, NewDiscoveryDocument(modulesURL))
}
