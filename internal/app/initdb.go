package app

import (
	"context"

	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
)

var starterCatalog = []domain.Product{
	{Name: "Tempered Glass Screen Guard", Category: "accessories", Price: 199, OriginalPrice: 299, InStock: true, Badge: "Bestseller"},
	{Name: "Silicone Back Cover", Category: "accessories", Price: 249, OriginalPrice: 349, InStock: true},
	{Name: "20W Fast Charger", Category: "chargers", Price: 899, OriginalPrice: 1199, InStock: true},
	{Name: "Type-C Cable 1m", Category: "cables", Price: 299, InStock: true},
}

// seedCatalog fills an empty catalog with starter products
func (a *Application) seedCatalog(ctx context.Context) error {
	existing, err := a.store.ListProducts(ctx, 1)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for i := range starterCatalog {
		p := starterCatalog[i]
		if _, err := a.store.CreateProduct(ctx, &p); err != nil {
			return err
		}
	}
	zap.L().Info("seeded starter catalog", zap.Int("products", len(starterCatalog)))
	return nil
}
