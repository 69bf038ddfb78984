package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stackforge/terraform-registry/cmd/registry/container"
	"github.com/stackforge/terraform-registry/cmd/registry/handlers"
)

// RegisterModuleRoutes registers the registry protocol read endpoints
func RegisterModuleRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewModuleHandler(c.Components, c.Resolver, c.Stats, c.Search, c.Store)

	modules := e.Group("/v1/modules")
	{
		modules.GET("/search", h.Search)                                          // GET /v1/modules/search?q=vpc
		modules.GET("/:namespace/:name/:provider/versions", h.ListVersions)       // GET /v1/modules/acme/vpc/aws/versions
		modules.GET("/:namespace/:name/:provider/stats", h.Stats)                 // GET /v1/modules/acme/vpc/aws/stats
		modules.GET("/:namespace/:name/:provider", h.GetModule)                   // GET /v1/modules/acme/vpc/aws
		modules.GET("/:namespace/:name/:provider/:version", h.GetModuleVersion)   // GET /v1/modules/acme/vpc/aws/1.0.0
		modules.GET("/:namespace/:name/:provider/:version/download", h.Download)  // GET /v1/modules/acme/vpc/aws/1.0.0/download
		modules.GET("/:namespace/:name/:provider/:version/archive", h.Archive)    // GET /v1/modules/acme/vpc/aws/1.0.0/archive
	}
}
