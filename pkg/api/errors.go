package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ultrai-run/ultrai/pkg/ultraierr"
)

// mapServiceError maps orchestration-engine errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *ultraierr.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, ultraierr.ErrBadRunID) {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed run id")
	}
	if errors.Is(err, ultraierr.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, ultraierr.ErrAlreadyExists) {
		return echo.NewHTTPError(http.StatusConflict, "run already exists")
	}
	if errors.Is(err, ultraierr.ErrUserInput) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	slog.Error("unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
