package adminapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/webserver"
)

type productPayload struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Category       string  `json:"category" validate:"max=100"`
	Price          float64 `json:"price" validate:"gte=0"`
	OriginalPrice  float64 `json:"originalPrice" validate:"gte=0"`
	Image          string  `json:"image" validate:"max=64"`
	ImageURL       string  `json:"imageUrl" validate:"max=700000"`
	ImageURL2      string  `json:"imageUrl2" validate:"max=700000"`
	Rating         float64 `json:"rating" validate:"gte=0,lte=5"`
	Reviews        int     `json:"reviews" validate:"gte=0"`
	InStock        bool    `json:"inStock"`
	Badge          string  `json:"badge"`
	QRID           string  `json:"qrId"`
	QRPassword     string  `json:"qrPassword"`
	TrackingStatus string  `json:"trackingStatus"`
	OwnerGender    string  `json:"ownerGender"`
}

func (p productPayload) product() domain.Product {
	return domain.Product{
		Name:           p.Name,
		Category:       p.Category,
		Price:          p.Price,
		OriginalPrice:  p.OriginalPrice,
		Image:          p.Image,
		ImageURL:       p.ImageURL,
		ImageURL2:      p.ImageURL2,
		Rating:         p.Rating,
		Reviews:        p.Reviews,
		InStock:        p.InStock,
		Badge:          p.Badge,
		QRID:           p.QRID,
		QRPassword:     p.QRPassword,
		TrackingStatus: p.TrackingStatus,
		OwnerGender:    p.OwnerGender,
	}
}

func (a *API) registerProductRoutes(srv *webserver.Server) {
	srv.ApiGET("/products", a.listProducts)
	srv.ApiPOST("/products", a.createProduct)
	srv.ApiPATCH("/products/:id", a.patchProduct)
	srv.ApiDELETE("/products/:id", a.deleteProduct)
}

// listProducts serves the catalog through the product list cache
func (a *API) listProducts(c echo.Context) error {
	list, hit, err := a.Cache.Load(c.Request().Context(), func(ctx context.Context) ([]domain.Product, error) {
		return a.Store.ListProducts(ctx, a.ListLimit)
	})
	if err != nil {
		return storeError(c, err, "Products")
	}
	h := c.Response().Header()
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(a.Cache.TTL().Seconds())))
	if hit {
		h.Set("X-Cache", "HIT")
	} else {
		h.Set("X-Cache", "MISS")
	}
	return ok(c, list)
}

func (a *API) createProduct(c echo.Context) error {
	var payload productPayload
	if err := bindJSON(c, &payload); err != nil {
		return invalid(c, err)
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid product", err.Error())
	}
	p := payload.product()
	saved, err := a.Store.CreateProduct(c.Request().Context(), &p)
	if err != nil {
		return storeError(c, err, "Product")
	}
	a.Cache.Invalidate()
	a.publish(c, broadcast.ProductAdded, saved)
	return ok(c, saved)
}

func (a *API) patchProduct(c echo.Context) error {
	var raw map[string]interface{}
	if err := bindJSON(c, &raw); err != nil {
		return invalid(c, err)
	}
	patch, err := domain.NormalizeProductPatch(raw)
	if err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	}
	saved, err := a.Store.PatchProduct(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return storeError(c, err, "Product")
	}
	a.Cache.Invalidate()
	a.publish(c, broadcast.ProductUpdated, saved)
	return ok(c, saved)
}

func (a *API) deleteProduct(c echo.Context) error {
	id := c.Param("id")
	if err := a.Store.DeleteProduct(c.Request().Context(), id); err != nil {
		return storeError(c, err, "Product")
	}
	a.Cache.Invalidate()
	a.publish(c, broadcast.ProductDeleted, broadcast.DeletePayload(domain.KindProduct, id))
	return success(c)
}
