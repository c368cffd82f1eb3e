package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"medicamp-api/internal/apperr"
	"medicamp-api/internal/response"
)

// NewHTTPErrorHandler maps errors escaping handlers onto the response
// envelope: apperr values keep their status and code, anything else is a 500
// with the cause surfaced for diagnostics.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			_ = response.Error(c, appErr.HTTPCode(), appErr.Code(), appErr.Message(), appErr.Details())
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			_ = response.Error(c, httpErr.Code, "HTTP_ERROR", fmt.Sprintf("%v", httpErr.Message), "")
			return
		}

		logger.Error("unhandled error",
			slog.Any("error", err),
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
		)
		_ = response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err.Error())
	}
}
