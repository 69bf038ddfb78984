package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stackforge/terraform-registry/cmd/registry/container"
	"github.com/stackforge/terraform-registry/cmd/registry/routes"
	"github.com/stackforge/terraform-registry/cmd/registry/service"
	"github.com/stackforge/terraform-registry/common/bootstrap"
	"github.com/stackforge/terraform-registry/common/db"
	"github.com/stackforge/terraform-registry/common/middleware"
	"github.com/stackforge/terraform-registry/common/ratelimit"
	"github.com/stackforge/terraform-registry/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, queue, cache, redis)
	components, err := bootstrap.Setup(ctx, "registry",
		bootstrap.WithDBInitHook(db.InitSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap registry: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// In-process stand-ins for the external docs/mirror consumers
	if err := service.RegisterConsumers(ctx, components.Queue, components.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register event consumers: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e, serviceContainer)
	setupHealthCheck(e, serviceContainer)
	registerRoutes(e, serviceContainer)
	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo, c *container.Container) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())

	if c.Components.Redis != nil {
		limiter := ratelimit.NewLimiter(c.Components.Redis.GetUnderlying(), c.Components.Logger)
		e.Use(middleware.ClientRateLimit(
			limiter,
			c.Components.Config.Registry.RateLimit,
			int(c.Components.Config.Registry.RateLimitWindow.Seconds()),
		))
	}
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		if err := c.Components.Health(ec.Request().Context()); err != nil {
			return ec.JSON(503, map[string]string{
				"status":  "unhealthy",
				"service": "registry",
			})
		}
		return ec.JSON(200, map[string]string{
			"status":  "ok",
			"service": "registry",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterDiscoveryRoutes(e, serviceContainer)
	routes.RegisterModuleRoutes(e, serviceContainer)
	routes.RegisterUploadRoutes(e, serviceContainer)
}

// startServer runs the Echo handler behind the graceful HTTP server
func startServer(e *echo.Echo, components *bootstrap.Components) {
	srv := server.New("registry", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
