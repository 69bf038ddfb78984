package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/stackforge/terraform-registry/cmd/registry/container"
	"github.com/stackforge/terraform-registry/cmd/registry/handlers"
)

// RegisterUploadRoutes registers the publication API
func RegisterUploadRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewUploadHandler(c.Components, c.Uploader, c.Resolver, c.Docs, c.VersionRepo)

	api := e.Group("/api/modules")
	{
		api.POST("/:namespace/:name/:provider/:version/upload", h.Upload)   // POST /api/modules/acme/vpc/aws/1.0.0/upload
		api.PATCH("/:namespace/:name/:provider/:version/docs", h.PatchDocs) // PATCH /api/modules/acme/vpc/aws/1.0.0/docs
	}
}
