package store

import (
	"context"

	"github.com/talkincode/shopsync/internal/domain"
)

// DefaultListLimit bounds the product list query
const DefaultListLimit = 100

// Error taxonomy shared by every backend
var (
	ErrNotFound     = domain.ErrNotFound
	ErrDuplicateKey = domain.ErrDuplicateKey
	ErrUnavailable  = domain.ErrUnavailable
	ErrValidation   = domain.ErrValidation
)

// ProductStore persists catalog products keyed by a server assigned id
type ProductStore interface {
	// CreateProduct assigns the id and timestamps and stores p
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	// ListProducts returns at most limit products, newest first
	ListProducts(ctx context.Context, limit int) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	// PatchProduct sets only the fields present in patch
	PatchProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// TrackingStore persists repair jobs keyed by qrId
type TrackingStore interface {
	// CreateTracking fails with ErrDuplicateKey when the qrId is taken
	CreateTracking(ctx context.Context, t *domain.Tracking) (*domain.Tracking, error)
	ListTracking(ctx context.Context) ([]domain.Tracking, error)
	GetTracking(ctx context.Context, qrID string) (*domain.Tracking, error)
	// UpdateTracking merges patch into the stored record
	UpdateTracking(ctx context.Context, qrID string, patch domain.Patch) (*domain.Tracking, error)
	DeleteTracking(ctx context.Context, qrID string) error
}

// OrderStore persists orders keyed by orderId
type OrderStore interface {
	CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	// UpdateOrder merges patch into the stored order, items are replaced as a whole
	UpdateOrder(ctx context.Context, orderID string, patch domain.Patch) (*domain.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

type Store interface {
	ProductStore
	TrackingStore
	OrderStore
	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
	// Name returns the backend name for logs and health output
	Name() string
	Close() error
}
