package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stackforge/terraform-registry/cmd/registry/container"
	"github.com/stackforge/terraform-registry/cmd/registry/handlers"
)

// RegisterDiscoveryRoutes registers the protocol discovery endpoint
func RegisterDiscoveryRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewDiscoveryHandler(c.Components)

	e.GET("/.well-known/terraform.json", h.Discovery)
}
