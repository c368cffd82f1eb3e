package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"medicamp-api/internal/apperr"
	"medicamp-api/internal/middleware"
	"medicamp-api/internal/response"
	"medicamp-api/internal/store"
)

// ListUsers returns every profile for the admin dashboard, newest first.
func (h *Handler) ListUsers(c echo.Context) error {
	p := middleware.ProfileFrom(c)
	users, err := h.store.ListProfiles(c.Request().Context(), store.CallerFor(p))
	if err != nil {
		return apperr.Store(err)
	}
	return response.Success(c, http.StatusOK, users, "")
}
