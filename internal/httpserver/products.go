package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/thehub/storefront/internal/backend"
	"github.com/thehub/storefront/internal/events"
	"github.com/thehub/storefront/internal/logging"
)

type ProductHandler struct {
	Products *backend.ProductsAPI
	Events   *events.Producer
	Log      *slog.Logger
}

func (h *ProductHandler) publish(c echo.Context, action string, productID int64, name string) {
	ctx := c.Request().Context()
	ev := events.NewProductEvent(action, productID, name)
	if err := h.Events.PublishEvent(ctx, events.TopicProductEvents, strconv.FormatInt(productID, 10), ev); err != nil {
		logging.FromContext(ctx).Warn("publish product event failed", "action", action, "error", err)
	}
}

func (h *ProductHandler) List(c echo.Context) error {
	filters := backend.ListFilters{
		Sort:     c.QueryParam("sort"),
		Category: c.QueryParam("category"),
		Query:    c.QueryParam("q"),
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		filters.Limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		filters.Page = v
	}

	products, err := h.Products.List(c.Request().Context(), filters)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) Get(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	product, err := h.Products.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, product)
}

// Create accepts either a JSON body or a multipart form with the same
// fields plus content[] file parts, which become the product's images.
func (h *ProductHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	ct := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		var in backend.ProductInput
		if err := c.Bind(&in); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		product, err := h.Products.Create(ctx, in)
		if err != nil {
			return httpError(err)
		}
		h.publish(c, "create", product.ID, product.Name)
		return c.JSON(http.StatusCreated, product)
	}

	in := backend.ProductInput{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Category:    c.FormValue("category"),
		Brand:       c.FormValue("brand"),
	}
	if v, err := strconv.ParseFloat(c.FormValue("price"), 64); err == nil {
		in.Price = v
	}
	if v, err := strconv.Atoi(c.FormValue("stock_quantity")); err == nil {
		in.Stock = v
	}

	files, err := formUploads(c)
	if err != nil {
		return err
	}

	product, err := h.Products.CreateWithImages(ctx, in, files)
	if err != nil {
		// a created record without images is reported, not rolled back
		if product != nil {
			h.Log.Warn("product created without images", "product_id", product.ID, "error", err)
			h.publish(c, "create", product.ID, product.Name)
			return c.JSON(http.StatusCreated, product)
		}
		return httpError(err)
	}
	h.publish(c, "create", product.ID, product.Name)
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) Patch(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	patch := map[string]any{}
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	product, err := h.Products.Patch(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	h.publish(c, "update", id, product.Name)
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	if err := h.Products.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	h.publish(c, "delete", id, "")
	return c.NoContent(http.StatusNoContent)
}

func formUploads(c echo.Context) ([]backend.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	var files []backend.Upload
	for _, fh := range form.File["content[]"] {
		f, err := fh.Open()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable file part")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable file part")
		}
		files = append(files, backend.Upload{Name: fh.Filename, Content: data})
	}
	return files, nil
}
