package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stackforge/terraform-registry/common/ratelimit"
)

// ClientRateLimit limits requests per client IP using a fixed window.
// On limiter errors requests are allowed through (fail open): the
// registry should keep serving modules when Redis is degraded.
func ClientRateLimit(limiter *ratelimit.Limiter, limit int64, windowSec int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result, err := limiter.CheckClientLimit(c.Request().Context(), c.RealIP(), limit, windowSec)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests. Please try again later.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
