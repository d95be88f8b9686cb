package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/thehub/storefront/internal/httpx"
	"github.com/thehub/storefront/internal/normalize"
)

type CartAPI struct {
	http *httpx.Client
}

func NewCartAPI(c *httpx.Client) *CartAPI {
	return &CartAPI{http: c}
}

// Ensure asks the backend for the session's active cart, creating one if
// none exists yet.
func (c *CartAPI) Ensure(ctx context.Context) (*normalize.Cart, error) {
	var cart normalize.Cart
	if err := c.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodPost,
		Path:   "/cart/ensure",
	}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *CartAPI) Get(ctx context.Context, cartID int64) (*normalize.Cart, error) {
	var cart normalize.Cart
	if err := c.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/cart/%d", cartID),
	}, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *CartAPI) AddItem(ctx context.Context, cartID, productID int64, quantity int) error {
	return c.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodPost,
		Path:   "/cart_item",
		Body: map[string]any{
			"cart_id":    cartID,
			"product_id": productID,
			"quantity":   quantity,
		},
	}, nil)
}

func (c *CartAPI) UpdateQuantity(ctx context.Context, cartItemID int64, quantity int) error {
	return c.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/cart_item/%d", cartItemID),
		Body:   map[string]any{"quantity": quantity},
	}, nil)
}

func (c *CartAPI) RemoveItem(ctx context.Context, cartItemID int64) error {
	return c.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/cart_item/%d", cartItemID),
	}, nil)
}

func (c *CartAPI) Clear(ctx context.Context, cartID int64) error {
	return c.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/cart/%d/items", cartID),
	}, nil)
}
