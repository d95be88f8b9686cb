package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thehub/storefront/internal/auth"
	"github.com/thehub/storefront/internal/backend"
	"github.com/thehub/storefront/internal/events"
	"github.com/thehub/storefront/internal/logging"
)

type SessionHandler struct {
	Auth   *auth.Controller
	Events *events.Producer
	Log    *slog.Logger
}

type sessionState struct {
	Status        string           `json:"status"`
	Authenticated bool             `json:"authenticated"`
	User          *backend.Profile `json:"user,omitempty"`
	Role          string           `json:"role,omitempty"`
	Error         string           `json:"error,omitempty"`
}

func (h *SessionHandler) state() sessionState {
	return sessionState{
		Status:        h.Auth.Status().String(),
		Authenticated: h.Auth.IsAuthenticated(),
		User:          h.Auth.User(),
		Role:          h.Auth.Role(),
		Error:         h.Auth.Err(),
	}
}

func (h *SessionHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state())
}

func (h *SessionHandler) Login(c echo.Context) error {
	var creds backend.Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	user, err := h.Auth.Login(ctx, creds)
	if err != nil {
		return httpError(err)
	}

	ev := events.NewSessionEvent("login", user.ID, user.Email)
	if err := h.Events.PublishEvent(ctx, events.TopicUserEvents, creds.Email, ev); err != nil {
		logging.FromContext(ctx).Warn("publish login event failed", "error", err)
	}

	return c.JSON(http.StatusOK, h.state())
}

func (h *SessionHandler) Signup(c echo.Context) error {
	var payload backend.SignupPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	user, err := h.Auth.Signup(ctx, payload)
	if err != nil {
		return httpError(err)
	}

	ev := events.NewSessionEvent("signup", user.ID, user.Email)
	if err := h.Events.PublishEvent(ctx, events.TopicUserEvents, payload.Email, ev); err != nil {
		logging.FromContext(ctx).Warn("publish signup event failed", "error", err)
	}

	return c.JSON(http.StatusOK, h.state())
}

func (h *SessionHandler) Logout(c echo.Context) error {
	var userID int64
	var email string
	if u := h.Auth.User(); u != nil {
		userID, email = u.ID, u.Email
	}

	h.Auth.Logout()

	ctx := c.Request().Context()
	ev := events.NewSessionEvent("logout", userID, email)
	if err := h.Events.PublishEvent(ctx, events.TopicUserEvents, email, ev); err != nil {
		logging.FromContext(ctx).Warn("publish logout event failed", "error", err)
	}

	return c.JSON(http.StatusOK, h.state())
}
