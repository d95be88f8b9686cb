package normalize

import "encoding/json"

// CartItem is the canonical cart line. Quantity is always positive once
// normalized; an item that would sanitize to zero is dropped by Cart.
type CartItem struct {
	ID        int64   `json:"id"`
	CartID    int64   `json:"cart_id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
	Subtotal  float64 `json:"subtotal"`
}

func (ci *CartItem) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        flexInt         `json:"id"`
		CartID    flexInt         `json:"cart_id"`
		ProductID flexInt         `json:"product_id"`
		Quantity  flexInt         `json:"quantity"`
		Price     flexFloat       `json:"price"`
		Product   json.RawMessage `json:"product"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ci.ID = int64(aux.ID)
	ci.CartID = int64(aux.CartID)
	ci.Quantity = Quantity(int(aux.Quantity))

	if len(aux.Product) > 0 {
		if err := json.Unmarshal(aux.Product, &ci.Product); err != nil {
			return err
		}
	}

	ci.ProductID = int64(aux.ProductID)
	if ci.ProductID == 0 {
		ci.ProductID = ci.Product.ID
	}

	price := ci.Product.Price
	if price == 0 {
		price = float64(aux.Price)
	}
	ci.Subtotal = price * float64(ci.Quantity)
	return nil
}

// Cart is the canonical cart shape, the client-held mirror of server state.
type Cart struct {
	CartID int64      `json:"cart_id"`
	UserID int64      `json:"user_id"`
	Items  []CartItem `json:"items"`
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        flexInt           `json:"id"`
		UserID    flexInt           `json:"user_id"`
		Items     []json.RawMessage `json:"items"`
		CartItems []json.RawMessage `json:"cart_items"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.CartID = int64(aux.ID)
	c.UserID = int64(aux.UserID)

	raw := aux.Items
	if len(raw) == 0 {
		raw = aux.CartItems
	}
	c.Items = make([]CartItem, 0, len(raw))
	for _, r := range raw {
		var item CartItem
		if json.Unmarshal(r, &item) != nil {
			continue
		}
		// zero quantity means deleted, product-less lines are noise
		if item.ProductID == 0 || item.Quantity <= 0 {
			continue
		}
		c.Items = append(c.Items, item)
	}
	return nil
}
