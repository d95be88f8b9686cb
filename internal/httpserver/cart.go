package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/thehub/storefront/internal/cart"
	"github.com/thehub/storefront/internal/events"
	"github.com/thehub/storefront/internal/logging"
	"github.com/thehub/storefront/internal/normalize"
)

type CartHandler struct {
	Cart   *cart.Controller
	Events *events.Producer
	Log    *slog.Logger
}

type cartState struct {
	CartID   int64                `json:"cart_id"`
	Items    []normalize.CartItem `json:"items"`
	Count    int                  `json:"count"`
	Total    float64              `json:"total"`
	Loading  bool                 `json:"loading"`
	Mutating bool                 `json:"mutating"`
	Error    string               `json:"error,omitempty"`
}

func (h *CartHandler) state() cartState {
	count, total := h.Cart.Totals()
	return cartState{
		CartID:   h.Cart.CartID(),
		Items:    h.Cart.Items(),
		Count:    count,
		Total:    total,
		Loading:  h.Cart.IsLoading(),
		Mutating: h.Cart.IsMutating(),
		Error:    h.Cart.Err(),
	}
}

func (h *CartHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state())
}

func (h *CartHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.Cart.EnsureCart(ctx); err != nil {
		return httpError(err)
	}
	if _, err := h.Cart.RefreshCart(ctx, 0); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.state())
}

func (h *CartHandler) AddItem(c echo.Context) error {
	var req struct {
		ProductID int64 `json:"product_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ctx := c.Request().Context()
	if err := h.Cart.AddItem(ctx, req.ProductID, req.Quantity); err != nil {
		return httpError(err)
	}
	h.publish(c, "add", req.ProductID, req.Quantity)
	return c.JSON(http.StatusOK, h.state())
}

func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.Cart.UpdateQuantity(c.Request().Context(), id, req.Quantity); err != nil {
		return httpError(err)
	}
	h.publish(c, "update", 0, req.Quantity)
	return c.JSON(http.StatusOK, h.state())
}

func (h *CartHandler) Increment(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if err := h.Cart.IncrementItem(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.state())
}

func (h *CartHandler) Decrement(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if err := h.Cart.DecrementItem(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.state())
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if err := h.Cart.RemoveItem(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	h.publish(c, "remove", 0, 0)
	return c.JSON(http.StatusOK, h.state())
}

func (h *CartHandler) Clear(c echo.Context) error {
	if err := h.Cart.ClearCart(c.Request().Context()); err != nil {
		return httpError(err)
	}
	h.publish(c, "clear", 0, 0)
	return c.JSON(http.StatusOK, h.state())
}

func (h *CartHandler) publish(c echo.Context, action string, productID int64, quantity int) {
	ctx := c.Request().Context()
	cartID := h.Cart.CartID()
	ev := events.NewCartEvent(action, cartID, productID, quantity)
	if err := h.Events.PublishEvent(ctx, events.TopicCartEvents, strconv.FormatInt(cartID, 10), ev); err != nil {
		logging.FromContext(ctx).Warn("publish cart event failed", "action", action, "error", err)
	}
}

func itemID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	return id, nil
}
