package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	OrderPending    = "Pending"
	OrderProcessing = "Processing"
	OrderShipped    = "Shipped"
	OrderDelivered  = "Delivered"
	OrderCancelled  = "Cancelled"
)

var OrderStatuses = []string{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

type Customer struct {
	Name    string `json:"name" bson:"name"`
	Phone   string `json:"phone" bson:"phone"`
	Email   string `json:"email" bson:"email"`
	Address string `json:"address" bson:"address"`
}

// OrderItem is a copy of the product line at order time. It never follows later product edits.
type OrderItem struct {
	ID       string  `json:"id" bson:"id"`
	Name     string  `json:"name" bson:"name"`
	Price    float64 `json:"price" bson:"price"`
	Quantity int     `json:"quantity" bson:"quantity"`
	Image    string  `json:"image,omitempty" bson:"image,omitempty"`
}

func (i OrderItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

type Order struct {
	OrderID       string      `json:"orderId" bson:"orderId"`
	Customer      Customer    `json:"customer" bson:"customer"`
	Items         []OrderItem `json:"items" bson:"items"`
	Total         float64     `json:"total" bson:"total"`
	PaymentMethod string      `json:"paymentMethod" bson:"paymentMethod"`
	Status        string      `json:"status" bson:"status"`
	OrderDate     time.Time   `json:"orderDate" bson:"orderDate"`
}

// ItemsTotal sums the snapshot lines
func (o Order) ItemsTotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.Subtotal()
	}
	return math.Round(sum*100) / 100
}

func (o *Order) ApplyDefaults(now time.Time) {
	o.OrderID = strings.TrimSpace(o.OrderID)
	if o.Status == "" {
		o.Status = OrderPending
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = now
	}
	if o.Total == 0 {
		o.Total = o.ItemsTotal()
	}
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
}

func (o *Order) Validate() error {
	if strings.TrimSpace(o.OrderID) == "" {
		return fmt.Errorf("%w: orderId is required", ErrValidation)
	}
	for i, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i+1)
		}
		if it.Price < 0 {
			return fmt.Errorf("%w: item %d price must not be negative", ErrValidation, i+1)
		}
	}
	if o.Total < 0 {
		return fmt.Errorf("%w: total must not be negative", ErrValidation)
	}
	return nil
}

func (o Order) Identities() []string {
	return []string{o.OrderID}
}
