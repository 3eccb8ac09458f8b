package coordinator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/mirror"
	"github.com/talkincode/shopsync/pkg/common"
)

// CreateOrder places the order locally under a client generated orderId and
// persists it in the background
func (c *Coordinator) CreateOrder(o domain.Order) (domain.Order, error) {
	item := o
	item.Items = append([]domain.OrderItem(nil), o.Items...)
	if item.OrderID == "" {
		item.OrderID = common.NextID()
	}
	item.ApplyDefaults(time.Now())
	if err := item.Validate(); err != nil {
		return domain.Order{}, err
	}
	if !c.mirror.Orders.Add(item) {
		return domain.Order{}, errors.Wrapf(domain.ErrDuplicateKey, "order %s", item.OrderID)
	}
	c.mirror.Changed(domain.KindOrder)

	c.submit(task{op: OpCreate, kind: domain.KindOrder, key: item.OrderID, run: func(ctx context.Context) error {
		saved, err := c.api.CreateOrder(ctx, &item)
		if err != nil {
			return err
		}
		// queued edits carry newer local state than the create response
		if c.queuedBehind(domain.KindOrder, item.OrderID) {
			return nil
		}
		if c.mirror.Orders.Bind(item.OrderID, *saved) {
			c.mirror.Changed(domain.KindOrder)
		}
		return nil
	}})
	return item, nil
}

func (c *Coordinator) UpdateOrder(orderID string, fields map[string]interface{}) (domain.Order, error) {
	patch, err := domain.NormalizeOrderPatch(fields)
	if err != nil {
		return domain.Order{}, err
	}
	updated, err := c.mirror.Orders.Modify(orderID, func(o *domain.Order) error {
		return o.ApplyPatch(patch)
	})
	if mirror.IsUnknown(err) {
		return domain.Order{}, errors.Wrapf(domain.ErrNotFound, "order %s", orderID)
	}
	if err != nil {
		return domain.Order{}, err
	}
	c.mirror.Changed(domain.KindOrder)

	c.submit(task{op: OpUpdate, kind: domain.KindOrder, key: orderID, run: func(ctx context.Context) error {
		saved, err := c.api.UpdateOrder(ctx, orderID, patch)
		if err != nil {
			return err
		}
		if c.mirror.Orders.Update(*saved) {
			c.mirror.Changed(domain.KindOrder)
		}
		return nil
	}})
	return updated, nil
}

func (c *Coordinator) DeleteOrder(orderID string) {
	if c.mirror.Orders.Remove(orderID) {
		c.mirror.Changed(domain.KindOrder)
	}
	if c.creating(domain.KindOrder, orderID) {
		c.mirror.Orders.Bury(orderID)
	}
	c.submit(task{op: OpDelete, kind: domain.KindOrder, key: orderID, run: func(ctx context.Context) error {
		return c.api.DeleteOrder(ctx, orderID)
	}})
}

func (c *Coordinator) DeleteOrderSync(ctx context.Context, orderID string) error {
	err := c.api.DeleteOrder(ctx, orderID)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		if c.mirror.Orders.Remove(orderID) {
			c.mirror.Changed(domain.KindOrder)
		}
	}
	return err
}
