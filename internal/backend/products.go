package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/thehub/storefront/internal/httpx"
	"github.com/thehub/storefront/internal/normalize"
)

type ProductsAPI struct {
	http *httpx.Client
}

func NewProductsAPI(c *httpx.Client) *ProductsAPI {
	return &ProductsAPI{http: c}
}

type ListFilters struct {
	Limit    int
	Page     int
	Sort     string
	Category string
	Query    string
}

func (f ListFilters) values() url.Values {
	v := url.Values{}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Sort != "" {
		v.Set("sort", f.Sort)
	}
	if c := normalize.Category(f.Category); c != "" {
		v.Set("category", c)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		v.Set("query", q)
	}
	return v
}

func (p *ProductsAPI) List(ctx context.Context, filters ListFilters) ([]normalize.Product, error) {
	resp, err := p.http.Do(ctx, httpx.Config{
		Method: http.MethodGet,
		Path:   "/product",
		Params: filters.values(),
	})
	if err != nil {
		return nil, err
	}
	return normalize.ProductList(resp.Body), nil
}

func (p *ProductsAPI) Get(ctx context.Context, id int64) (*normalize.Product, error) {
	var product normalize.Product
	if err := p.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/product/%d", id),
	}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock_quantity"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand,omitempty"`
}

// Create registers the product record without images; images are attached
// afterwards via UploadImages and PatchImages.
func (p *ProductsAPI) Create(ctx context.Context, in ProductInput) (*normalize.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = normalize.Category(in.Category)
	in.Brand = strings.TrimSpace(in.Brand)
	if in.Price < 0 {
		in.Price = 0
	}
	if in.Stock < 0 {
		in.Stock = 0
	}

	body := map[string]any{
		"name":           in.Name,
		"description":    in.Description,
		"price":          in.Price,
		"stock_quantity": in.Stock,
		"category":       in.Category,
		"image_url":      []any{},
	}
	if in.Brand != "" {
		body["brand"] = in.Brand
	}

	var product normalize.Product
	if err := p.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodPost,
		Path:   "/product",
		Body:   body,
	}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (p *ProductsAPI) Patch(ctx context.Context, id int64, patch map[string]any) (*normalize.Product, error) {
	var product normalize.Product
	if err := p.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/product/%d", id),
		Body:   patch,
	}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (p *ProductsAPI) Delete(ctx context.Context, id int64) error {
	return p.http.DoJSON(ctx, httpx.Config{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/product/%d", id),
	}, nil)
}

// Upload is one image file submitted to the backend's multipart endpoint.
type Upload struct {
	Name    string
	Content []byte
}

// UploadImages submits files as multipart content[] parts and returns the
// stored-image descriptors verbatim, ready to be patched onto a product.
func (p *ProductsAPI) UploadImages(ctx context.Context, files []Upload) ([]json.RawMessage, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateFormFile("content[]", f.Name)
		if err != nil {
			return nil, fmt.Errorf("build multipart: %w", err)
		}
		if _, err := fw.Write(f.Content); err != nil {
			return nil, fmt.Errorf("build multipart: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}

	var uploaded []json.RawMessage
	if err := p.http.DoJSON(ctx, httpx.Config{
		Method:  http.MethodPost,
		Path:    "/upload/image",
		Body:    &buf,
		Headers: http.Header{"Content-Type": {w.FormDataContentType()}},
	}, &uploaded); err != nil {
		return nil, err
	}
	return uploaded, nil
}

func (p *ProductsAPI) PatchImages(ctx context.Context, id int64, uploaded []json.RawMessage) (*normalize.Product, error) {
	return p.Patch(ctx, id, map[string]any{"image_url": uploaded})
}

// CreateWithImages runs the create record / upload images / patch references
// sequence. The three calls carry no transactional guarantee: when a later
// step fails, the already-created product is returned alongside the error
// and stays on the backend without images until retried or cleaned up.
func (p *ProductsAPI) CreateWithImages(ctx context.Context, in ProductInput, files []Upload) (*normalize.Product, error) {
	created, err := p.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return created, nil
	}

	uploaded, err := p.UploadImages(ctx, files)
	if err != nil {
		return created, fmt.Errorf("product %d created without images: %w", created.ID, err)
	}

	updated, err := p.PatchImages(ctx, created.ID, uploaded)
	if err != nil {
		return created, fmt.Errorf("product %d created without images: %w", created.ID, err)
	}
	return updated, nil
}
