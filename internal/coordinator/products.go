package coordinator

import (
	"context"

	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/mirror"
	"github.com/talkincode/shopsync/pkg/common"
)

// CreateProduct shows the product under a provisional id right away and
// creates it in the background. The returned product carries the provisional id.
func (c *Coordinator) CreateProduct(p domain.Product) (domain.Product, error) {
	item := p
	item.ID = common.ProvisionalID()
	item.ApplyDefaults()
	if err := item.Validate(); err != nil {
		return domain.Product{}, err
	}
	c.mu.Lock()
	c.deferred[item.ID] = []func(string){}
	c.mu.Unlock()

	c.mirror.Products.Add(item)
	c.mirror.Changed(domain.KindProduct)

	provisional := item.ID
	c.submit(task{op: OpCreate, kind: domain.KindProduct, key: provisional, run: func(ctx context.Context) error {
		saved, err := c.api.CreateProduct(ctx, &item, provisional)
		if err != nil {
			return err
		}
		next := *saved
		if c.hasDeferred(provisional) {
			// keep the local edits the deferred ops are about to persist
			if cur, ok := c.mirror.Products.Get(provisional); ok {
				cur.ID = saved.ID
				next = cur
			}
		}
		if c.mirror.Products.Bind(provisional, next) {
			c.mirror.Changed(domain.KindProduct)
		}
		c.markCreated(provisional, saved.ID)
		return nil
	}})
	return item, nil
}

// CreateProductSync creates the product before touching the mirror
func (c *Coordinator) CreateProductSync(ctx context.Context, p domain.Product) (*domain.Product, error) {
	saved, err := c.api.CreateProduct(ctx, &p, "")
	if err != nil {
		return nil, err
	}
	if c.mirror.Products.Add(*saved) {
		c.mirror.Changed(domain.KindProduct)
	}
	return saved, nil
}

// UpdateProduct patches the mirrored product and persists the patch in the background
func (c *Coordinator) UpdateProduct(id string, fields map[string]interface{}) (domain.Product, error) {
	patch, err := domain.NormalizeProductPatch(fields)
	if err != nil {
		return domain.Product{}, err
	}
	updated, err := c.mirror.Products.Modify(id, func(p *domain.Product) error {
		return p.ApplyPatch(patch)
	})
	if mirror.IsUnknown(err) {
		return domain.Product{}, errors.Wrapf(domain.ErrNotFound, "product %s", id)
	}
	if err != nil {
		return domain.Product{}, err
	}
	c.mirror.Changed(domain.KindProduct)

	err = c.whenCreated(OpUpdate, id, func(ctx context.Context, real string) error {
		saved, err := c.api.PatchProduct(ctx, real, patch)
		if err != nil {
			return err
		}
		if c.mirror.Products.Update(*saved) {
			c.mirror.Changed(domain.KindProduct)
		}
		return nil
	})
	return updated, err
}

// PatchProductSync persists the patch first and mirrors the store result
func (c *Coordinator) PatchProductSync(ctx context.Context, id string, fields map[string]interface{}) (*domain.Product, error) {
	real, ok, err := c.resolve(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(domain.ErrUnavailable, "product %s is still being created", id)
	}
	saved, err := c.api.PatchProduct(ctx, real, fields)
	if err != nil {
		return nil, err
	}
	if c.mirror.Products.Update(*saved) {
		c.mirror.Changed(domain.KindProduct)
	}
	return saved, nil
}

// DeleteProduct removes the product from the mirror and deletes it in the background
func (c *Coordinator) DeleteProduct(id string) error {
	if err := c.whenCreated(OpDelete, id, func(ctx context.Context, real string) error {
		return c.api.DeleteProduct(ctx, real)
	}); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if c.mirror.Products.Remove(id) {
		c.mirror.Changed(domain.KindProduct)
	}
	return nil
}
