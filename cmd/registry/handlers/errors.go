package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stackforge/terraform-registry/cmd/registry/service"
	"github.com/stackforge/terraform-registry/common/logger"
)

// writeServiceError maps the service error taxonomy onto HTTP
// responses. Client-caused errors carry full detail; server-caused
// errors are logged internally and surfaced with a generic message plus
// the request id for support correlation.
func writeServiceError(c echo.Context, log *logger.Logger, err error) error {
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  "validation_failed",
			"errors": validationErr.Fields,
		})
	}

	var conflictErr *service.ConflictError
	if errors.As(err, &conflictErr) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   "version_conflict",
			"message": conflictErr.Error(),
		})
	}

	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"detail": "Module not found",
		})
	}

	var consistencyErr *service.ConsistencyError
	if errors.As(err, &consistencyErr) {
		log.Error("data consistency error", "error", err, "request_id", requestID)
		return genericServerError(c, requestID)
	}

	log.Error("request failed", "error", err, "request_id", requestID)
	return genericServerError(c, requestID)
}

func genericServerError(c echo.Context, requestID string) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":          "internal_error",
		"message":        "An internal error occurred. Contact support with the correlation id.",
		"correlation_id": requestID,
	})
}
