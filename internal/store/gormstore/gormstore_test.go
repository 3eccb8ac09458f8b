package gormstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/shopsync/config"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/store"
)

var _ store.Store = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.DBConfig{Type: "sqlite", Dsn: filepath.Join(t.TempDir(), "shop.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProductLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateProduct(ctx, &domain.Product{ID: "tmp-1", Name: "Tempered Glass", Price: 199})
	require.NoError(t, err)
	assert.NotEqual(t, "tmp-1", first.ID)
	assert.Equal(t, domain.DefaultProductImage, first.Image)
	assert.Equal(t, float64(199), first.OriginalPrice)

	second, err := s.CreateProduct(ctx, &domain.Product{Name: "Back Cover", Price: 299})
	require.NoError(t, err)

	list, err := s.ListProducts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	patch, err := domain.NormalizeProductPatch(map[string]interface{}{"price": float64(149), "inStock": true})
	require.NoError(t, err)
	patched, err := s.PatchProduct(ctx, first.ID, patch)
	require.NoError(t, err)
	assert.Equal(t, float64(149), patched.Price)
	assert.True(t, patched.InStock)
	assert.Equal(t, "Tempered Glass", patched.Name)
	assert.Equal(t, first.ID, patched.ID)

	_, err = s.PatchProduct(ctx, "missing", patch)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteProduct(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, first.ID), store.ErrNotFound)

	_, err = s.GetProduct(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductRejectsOversizedImage(t *testing.T) {
	s := newTestStore(t)
	big := make([]byte, domain.MaxImageDataLen+1)
	for i := range big {
		big[i] = 'a'
	}
	_, err := s.CreateProduct(context.Background(), &domain.Product{Name: "x", ImageURL: string(big)})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestTrackingUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateTracking(ctx, &domain.Tracking{QRID: "QR1", CustomerName: "Ravi"})
	require.NoError(t, err)

	_, err = s.CreateTracking(ctx, &domain.Tracking{QRID: "QR1", CustomerName: "Someone else"})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	list, err := s.ListTracking(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ravi", list[0].CustomerName)
	assert.Equal(t, domain.DefaultEstimatedDays, list[0].EstimatedDays)
}

func TestTrackingUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateTracking(ctx, &domain.Tracking{QRID: "QR1", Issue: "cracked screen"})
	require.NoError(t, err)

	patch, err := domain.NormalizeTrackingPatch(map[string]interface{}{"status": domain.TrackingDiagnostics})
	require.NoError(t, err)
	updated, err := s.UpdateTracking(ctx, "QR1", patch)
	require.NoError(t, err)
	assert.Equal(t, domain.TrackingDiagnostics, updated.Status)
	assert.Equal(t, "cracked screen", updated.Issue)

	_, err = s.UpdateTracking(ctx, "QR9", patch)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteTracking(ctx, "QR1"))
	assert.ErrorIs(t, s.DeleteTracking(ctx, "QR1"), store.ErrNotFound)
}

func TestOrderPriceSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.CreateProduct(ctx, &domain.Product{Name: "Charger", Price: 500})
	require.NoError(t, err)

	order, err := s.CreateOrder(ctx, &domain.Order{
		Customer: domain.Customer{Name: "Asha", Phone: "98450"},
		Items:    []domain.OrderItem{{ID: p.ID, Name: p.Name, Price: p.Price, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, float64(1000), order.Total)

	patch, err := domain.NormalizeProductPatch(map[string]interface{}{"price": float64(650)})
	require.NoError(t, err)
	_, err = s.PatchProduct(ctx, p.ID, patch)
	require.NoError(t, err)

	again, err := s.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.Len(t, again.Items, 1)
	assert.Equal(t, float64(500), again.Items[0].Price)
	assert.Equal(t, float64(1000), again.Total)
	assert.Equal(t, "Asha", again.Customer.Name)
}

func TestOrderUpdateAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateOrder(ctx, &domain.Order{OrderID: "ORD1", Items: []domain.OrderItem{{Name: "a", Price: 10, Quantity: 1}}})
	require.NoError(t, err)
	_, err = s.CreateOrder(ctx, &domain.Order{OrderID: "ORD1"})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	patch, err := domain.NormalizeOrderPatch(map[string]interface{}{"status": domain.OrderShipped})
	require.NoError(t, err)
	updated, err := s.UpdateOrder(ctx, "ORD1", patch)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderShipped, updated.Status)
	assert.Len(t, updated.Items, 1)

	list, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.OrderShipped, list[0].Status)

	require.NoError(t, s.DeleteOrder(ctx, "ORD1"))
	assert.ErrorIs(t, s.DeleteOrder(ctx, "ORD1"), store.ErrNotFound)
}
