package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	"github.com/thehub/storefront/internal/auth"
	"github.com/thehub/storefront/internal/backend"
	"github.com/thehub/storefront/internal/cart"
	"github.com/thehub/storefront/internal/events"
	"github.com/thehub/storefront/internal/httpx"
)

type Deps struct {
	Auth     *auth.Controller
	Cart     *cart.Controller
	Products *backend.ProductsAPI
	Users    *backend.UsersAPI
	Events   *events.Producer
	Log      *slog.Logger
}

func Register(e *echo.Echo, d *Deps) error {
	if d.Log == nil {
		d.Log = slog.Default()
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, m := range Common() {
		e.Use(m)
	}

	sh := &SessionHandler{Auth: d.Auth, Events: d.Events, Log: d.Log}
	e.POST("/session/login", sh.Login)
	e.POST("/session/signup", sh.Signup)
	e.POST("/session/logout", sh.Logout)
	e.GET("/session", sh.State)

	ch := &CartHandler{Cart: d.Cart, Events: d.Events, Log: d.Log}
	e.GET("/cart", ch.State)
	e.POST("/cart/refresh", ch.Refresh)
	e.POST("/cart/items", ch.AddItem)
	e.PATCH("/cart/items/:id", ch.UpdateQuantity)
	e.POST("/cart/items/:id/increment", ch.Increment)
	e.POST("/cart/items/:id/decrement", ch.Decrement)
	e.DELETE("/cart/items/:id", ch.RemoveItem)
	e.DELETE("/cart/items", ch.Clear)

	ph := &ProductHandler{Products: d.Products, Events: d.Events, Log: d.Log}
	e.GET("/products", ph.List)
	e.GET("/products/:id", ph.Get)

	admin := e.Group("/admin", d.adminOnly)
	admin.POST("/products", ph.Create)
	admin.PATCH("/products/:id", ph.Patch)
	admin.DELETE("/products/:id", ph.Delete)

	uh := &UserHandler{Users: d.Users, Log: d.Log}
	admin.GET("/users", uh.List)
	admin.PATCH("/users/:id", uh.Patch)
	admin.DELETE("/users/:id", uh.Delete)

	return nil
}

func Common() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		ecM.Recover(),
		ecM.RequestID(),
		ecM.Logger(),
		ecM.Secure(),
	}
}

// adminOnly guards the admin group on the session's current profile.
func (d *Deps) adminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !d.Auth.IsAuthenticated() {
			return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
		}
		if !d.Auth.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, auth.ErrNotAdmin.Error())
		}
		return next(c)
	}
}

// httpError translates controller and upstream failures into an echo error,
// passing upstream status codes through rather than flattening them to 500.
func httpError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidProduct):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrNoActiveCart):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotAdmin):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	if code := httpx.StatusCode(err); code != 0 {
		return echo.NewHTTPError(code, httpx.Message(err, "upstream request failed"))
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
