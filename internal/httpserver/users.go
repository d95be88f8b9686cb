package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/thehub/storefront/internal/backend"
)

type UserHandler struct {
	Users *backend.UsersAPI
	Log   *slog.Logger
}

func (h *UserHandler) List(c echo.Context) error {
	filters := backend.UserFilters{
		Query: c.QueryParam("q"),
		Role:  c.QueryParam("role"),
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		filters.Limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		filters.Page = v
	}
	if raw := c.QueryParam("active"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filters.Active = &v
		}
	}

	users, err := h.Users.List(c.Request().Context(), filters)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Patch(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	patch := map[string]any{}
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.Users.Patch(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
