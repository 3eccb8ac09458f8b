package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/notify"
	"github.com/talkincode/shopsync/internal/webserver"
	"go.uber.org/zap"
)

// orderDetails.id arrives as a number from browsers that stamp it with the clock
type orderDetails struct {
	ID            interface{}        `json:"id" validate:"required"`
	Customer      domain.Customer    `json:"customer"`
	Items         []domain.OrderItem `json:"items" validate:"dive"`
	Total         float64            `json:"total" validate:"gte=0"`
	PaymentMethod string             `json:"paymentMethod"`
}

type orderSMSPayload struct {
	OrderDetails orderDetails `json:"orderDetails"`
	OwnerPhone   string       `json:"ownerPhone"`
}

func (a *API) registerNotifyRoutes(srv *webserver.Server) {
	srv.ApiPOST("/send-order-sms", a.sendOrderSMS)
}

// sendOrderSMS hands the composed owner message to the notifier
func (a *API) sendOrderSMS(c echo.Context) error {
	var payload orderSMSPayload
	if err := bindJSON(c, &payload); err != nil {
		return invalid(c, err)
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_FAILED", "Invalid order details", err.Error())
	}
	d := payload.OrderDetails
	orderID := cast.ToString(d.ID)
	msg := notify.ComposeOrderMessage(domain.Order{
		OrderID:       orderID,
		Customer:      d.Customer,
		Items:         d.Items,
		Total:         d.Total,
		PaymentMethod: d.PaymentMethod,
	})
	to := payload.OwnerPhone
	if to == "" {
		to = a.OwnerPhone
	}
	if err := a.Notifier.Notify(c.Request().Context(), to, "New order "+orderID, msg); err != nil {
		zap.L().Error("adminapi: owner notification failed", zap.String("order", orderID), zap.Error(err))
		return fail(c, http.StatusBadGateway, "NOTIFY_FAILED", "Failed to notify owner", err.Error())
	}
	return ok(c, map[string]interface{}{
		"success": true,
		"message": "Order received and SMS queued",
		"orderId": orderID,
	})
}
