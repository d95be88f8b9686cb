package normalize

import "encoding/json"

// Product is the canonical read-only product shape. Identity fields are
// never mutated client-side; admin flows patch a constrained subset.
type Product struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Brand       string   `json:"brand"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Images      []string `json:"images"`
	Cover       string   `json:"cover"`
}

func (p *Product) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID          flexInt         `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Brand       string          `json:"brand"`
		Price       flexFloat       `json:"price"`
		PriceValue  flexFloat       `json:"price_value"`
		Stock       *flexInt        `json:"stock"`
		StockQty    *flexInt        `json:"stock_quantity"`
		ImageURL    json.RawMessage `json:"image_url"`
		RawImages   json.RawMessage `json:"images"`
		Image       string          `json:"image"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	p.ID = int64(aux.ID)
	p.Name = aux.Name
	p.Description = aux.Description
	p.Category = Category(aux.Category)
	p.Brand = aux.Brand

	p.Price = float64(aux.Price)
	if p.Price == 0 {
		p.Price = float64(aux.PriceValue)
	}

	switch {
	case aux.Stock != nil:
		p.Stock = int(*aux.Stock)
	case aux.StockQty != nil:
		p.Stock = int(*aux.StockQty)
	}

	p.Images = Images(aux.ImageURL)
	if len(p.Images) == 0 {
		p.Images = Images(aux.RawImages)
	}
	p.Cover = aux.Image
	if p.Cover == "" {
		p.Cover = Cover(p.Images)
	}
	return nil
}

// ProductList decodes any of the backend's list shapes into products.
func ProductList(body []byte) []Product {
	items := Items(body)
	out := make([]Product, 0, len(items))
	for _, raw := range items {
		var p Product
		if json.Unmarshal(raw, &p) != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}
