package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/storage"
)

// mapServiceError maps domain-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	if errors.Is(err, config.ErrServiceNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "service not found")
	}
	if errors.Is(err, storage.ErrNoTaskAvailable) {
		return echo.NewHTTPError(http.StatusConflict, "no task available")
	}

	slog.Error("unexpected domain error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
