package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/webserver"
)

func (a *API) registerOrderRoutes(srv *webserver.Server) {
	srv.ApiGET("/orders", a.listOrders)
	srv.ApiGET("/orders/export", a.exportOrders)
	srv.ApiGET("/orders/:orderId", a.getOrder)
	srv.ApiPOST("/orders", a.createOrder)
	srv.ApiPUT("/orders/:orderId", a.updateOrder)
	srv.ApiDELETE("/orders/:orderId", a.deleteOrder)
}

// filterOrders applies ?status= and ?limit=
func filterOrders(c echo.Context, rows []domain.Order) []domain.Order {
	status := strings.TrimSpace(c.QueryParam("status"))
	limit := cast.ToInt(c.QueryParam("limit"))
	if status == "" && limit <= 0 {
		return rows
	}
	out := make([]domain.Order, 0, len(rows))
	for _, o := range rows {
		if status != "" && !strings.EqualFold(o.Status, status) {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (a *API) listOrders(c echo.Context) error {
	rows, err := a.Store.ListOrders(c.Request().Context())
	if err != nil {
		return storeError(c, err, "Orders")
	}
	return ok(c, filterOrders(c, rows))
}

func (a *API) getOrder(c echo.Context) error {
	o, err := a.Store.GetOrder(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return storeError(c, err, "Order")
	}
	return ok(c, o)
}

func (a *API) createOrder(c echo.Context) error {
	var o domain.Order
	if err := bindJSON(c, &o); err != nil {
		return invalid(c, err)
	}
	saved, err := a.Store.CreateOrder(c.Request().Context(), &o)
	if err != nil {
		return storeError(c, err, "Order "+o.OrderID)
	}
	a.publish(c, broadcast.OrderAdded, saved)
	return ok(c, saved)
}

func (a *API) updateOrder(c echo.Context) error {
	var raw map[string]interface{}
	if err := bindJSON(c, &raw); err != nil {
		return invalid(c, err)
	}
	patch, err := domain.NormalizeOrderPatch(raw)
	if err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil)
	}
	orderID := c.Param("orderId")
	saved, err := a.Store.UpdateOrder(c.Request().Context(), orderID, patch)
	if err != nil {
		return storeError(c, err, "Order "+orderID)
	}
	a.publish(c, broadcast.OrderUpdated, saved)
	return ok(c, saved)
}

func (a *API) deleteOrder(c echo.Context) error {
	orderID := c.Param("orderId")
	if err := a.Store.DeleteOrder(c.Request().Context(), orderID); err != nil {
		return storeError(c, err, "Order "+orderID)
	}
	a.publish(c, broadcast.OrderDeleted, broadcast.DeletePayload(domain.KindOrder, orderID))
	return success(c)
}

// orderLine is one csv row per ordered item
type orderLine struct {
	OrderID       string  `csv:"order_id"`
	OrderDate     string  `csv:"order_date"`
	Status        string  `csv:"status"`
	Customer      string  `csv:"customer"`
	Phone         string  `csv:"phone"`
	Address       string  `csv:"address"`
	PaymentMethod string  `csv:"payment_method"`
	Item          string  `csv:"item"`
	Quantity      int     `csv:"quantity"`
	Price         float64 `csv:"price"`
	Subtotal      float64 `csv:"subtotal"`
	Total         float64 `csv:"order_total"`
}

func orderLines(orders []domain.Order) []*orderLine {
	lines := make([]*orderLine, 0, len(orders))
	for _, o := range orders {
		base := orderLine{
			OrderID:       o.OrderID,
			OrderDate:     o.OrderDate.Format(time.RFC3339),
			Status:        o.Status,
			Customer:      o.Customer.Name,
			Phone:         o.Customer.Phone,
			Address:       o.Customer.Address,
			PaymentMethod: o.PaymentMethod,
			Total:         o.Total,
		}
		if len(o.Items) == 0 {
			line := base
			lines = append(lines, &line)
			continue
		}
		for _, it := range o.Items {
			line := base
			line.Item = it.Name
			line.Quantity = it.Quantity
			line.Price = it.Price
			line.Subtotal = it.Subtotal()
			lines = append(lines, &line)
		}
	}
	return lines
}

// exportOrders downloads the order book as csv, honoring the list filters
func (a *API) exportOrders(c echo.Context) error {
	rows, err := a.Store.ListOrders(c.Request().Context())
	if err != nil {
		return storeError(c, err, "Orders")
	}
	data, err := gocsv.MarshalBytes(orderLines(filterOrders(c, rows)))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to export orders", err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=orders.csv")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}
