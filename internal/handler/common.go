// Package handler exposes the HTTP handlers of the storefront, the
// customer area and the admin API.  Handlers translate service and
// repository errors into JSON error bodies.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/course-commerce/internal/repository"
	"github.com/iliyamo/course-commerce/internal/service"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// parseID reads a positive numeric path or query value.
func parseID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	return id, err == nil && id > 0
}

// errorStatus maps domain errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrUserRequired),
		errors.Is(err, service.ErrPastExpiration):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": msg}.  Server errors are logged and
// reported with a generic message.
func fail(c echo.Context, logger *slog.Logger, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		return c.JSON(status, echo.Map{"error": http.StatusText(status)})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// bindValid binds the request body into dst and runs the validator.
// The returned error is an *echo.HTTPError the caller passes up as is.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(dst); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
