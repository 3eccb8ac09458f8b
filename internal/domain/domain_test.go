package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProductPatch(t *testing.T) {
	patch, err := NormalizeProductPatch(map[string]interface{}{
		"price":   float64(250),
		"reviews": float64(3),
		"inStock": true,
		"badge":   nil,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"badge", "inStock", "price", "reviews"}, patch.Fields())
	assert.Equal(t, float64(250), patch["price"])
	assert.Equal(t, 3, patch["reviews"])
	assert.Equal(t, "", patch["badge"])

	cols := patch.Columns()
	assert.Equal(t, true, cols["in_stock"])
	assert.Contains(t, cols, "badge")
}

func TestNormalizeProductPatchRejects(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"empty":        {},
		"immutable id": {"id": "123"},
		"unknown":      {"colour": "red"},
		"wrong type":   {"price": "cheap"},
		"negative":     {"price": float64(-1)},
		"huge image":   {"imageUrl": strings.Repeat("x", MaxImageDataLen+1)},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeProductPatch(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestApplyPatchKeepsUntouchedFields(t *testing.T) {
	p := Product{ID: "1", Name: "Cover", Price: 100, Category: "accessories"}
	patch, err := NormalizeProductPatch(map[string]interface{}{"price": float64(120)})
	require.NoError(t, err)

	require.NoError(t, p.ApplyPatch(patch))
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, "Cover", p.Name)
	assert.Equal(t, "accessories", p.Category)
	assert.Equal(t, float64(120), p.Price)
}

func TestProductDefaults(t *testing.T) {
	p := Product{Name: "  Charger ", Price: 499}
	p.ApplyDefaults()

	assert.Equal(t, "Charger", p.Name)
	assert.Equal(t, DefaultProductImage, p.Image)
	assert.Equal(t, float64(499), p.OriginalPrice)
	assert.Equal(t, DefaultProductRating, p.Rating)
	assert.Equal(t, TrackingReceived, p.TrackingStatus)
	assert.Equal(t, "none", p.OwnerGender)
	assert.NoError(t, p.Validate())
}

func TestTrackingStatusLadder(t *testing.T) {
	assert.Equal(t, TrackingDiagnostics, NextStatus(TrackingReceived))
	assert.Equal(t, TrackingCompleted, NextStatus(TrackingReadyForPickup))
	assert.Equal(t, TrackingCompleted, NextStatus(TrackingCompleted))
	assert.Equal(t, "Lost", NextStatus("Lost"))
}

func TestTrackingDefaultsAndTime(t *testing.T) {
	tr := Tracking{QRID: " QR1 ", LastUpdated: "2024-03-05 10:30"}
	tr.ApplyDefaults()

	assert.Equal(t, "QR1", tr.QRID)
	assert.Equal(t, DefaultEstimatedDays, tr.EstimatedDays)
	assert.Equal(t, TrackingReceived, tr.Status)
	assert.Equal(t, 2024, tr.LastUpdatedTime().Year())

	assert.True(t, Tracking{CreatedAt: "not a date"}.LastUpdatedTime().IsZero())
	assert.Error(t, (&Tracking{}).Validate())
}

func TestOrderDefaults(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	o := Order{
		OrderID: "A1",
		Items: []OrderItem{
			{Name: "Glass", Price: 99.5, Quantity: 2},
			{Name: "Cable", Price: 150, Quantity: 1},
		},
	}
	o.ApplyDefaults(now)

	assert.Equal(t, OrderPending, o.Status)
	assert.Equal(t, now, o.OrderDate)
	assert.Equal(t, 349.0, o.Total)
	assert.NoError(t, o.Validate())

	bad := Order{OrderID: "A2", Items: []OrderItem{{Name: "x", Price: 1}}}
	assert.ErrorIs(t, bad.Validate(), ErrValidation)
}

func TestEntityKindKeyField(t *testing.T) {
	assert.Equal(t, "id", KindProduct.KeyField())
	assert.Equal(t, "qrId", KindTracking.KeyField())
	assert.Equal(t, "orderId", KindOrder.KeyField())
	assert.False(t, EntityKind("cart").Valid())
}

func TestTrackingPatchMerge(t *testing.T) {
	tr := Tracking{QRID: "QR1", CustomerName: "Ravi", Status: TrackingReceived, EstimatedDays: 2}
	patch, err := NormalizeTrackingPatch(map[string]interface{}{
		"qrId":          "QR2",
		"status":        TrackingDiagnostics,
		"estimatedDays": "4",
	})
	require.NoError(t, err)
	require.NoError(t, tr.ApplyPatch(patch))

	assert.Equal(t, "QR1", tr.QRID)
	assert.Equal(t, "Ravi", tr.CustomerName)
	assert.Equal(t, TrackingDiagnostics, tr.Status)
	assert.Equal(t, 4, tr.EstimatedDays)

	_, err = NormalizeTrackingPatch(map[string]interface{}{"colour": "red"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NormalizeTrackingPatch(map[string]interface{}{"qrId": "QR1"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrderPatchMerge(t *testing.T) {
	o := Order{
		OrderID:  "A1",
		Customer: Customer{Name: "Asha", Phone: "999"},
		Items:    []OrderItem{{Name: "a", Price: 1, Quantity: 1}, {Name: "b", Price: 2, Quantity: 1}},
		Status:   OrderPending,
	}
	patch, err := NormalizeOrderPatch(map[string]interface{}{
		"orderId":  "B2",
		"status":   OrderShipped,
		"customer": map[string]interface{}{"address": "Main road"},
		"items":    []interface{}{map[string]interface{}{"name": "c", "price": float64(5), "quantity": float64(1)}},
	})
	require.NoError(t, err)
	require.NoError(t, o.ApplyPatch(patch))

	assert.Equal(t, "A1", o.OrderID)
	assert.Equal(t, OrderShipped, o.Status)
	assert.Equal(t, "Asha", o.Customer.Name)
	assert.Equal(t, "Main road", o.Customer.Address)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "c", o.Items[0].Name)
}
