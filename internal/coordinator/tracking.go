package coordinator

import (
	"context"

	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/domain"
	"github.com/talkincode/shopsync/internal/mirror"
)

// CreateTracking refuses a qrId the mirror already holds, then creates optimistically
func (c *Coordinator) CreateTracking(t domain.Tracking) (domain.Tracking, error) {
	item := t
	item.ApplyDefaults()
	if err := item.Validate(); err != nil {
		return domain.Tracking{}, err
	}
	if !c.mirror.Tracking.Add(item) {
		return domain.Tracking{}, errors.Wrapf(domain.ErrDuplicateKey, "tracking %s", item.QRID)
	}
	c.mirror.Changed(domain.KindTracking)

	c.submit(task{op: OpCreate, kind: domain.KindTracking, key: item.QRID, run: func(ctx context.Context) error {
		saved, err := c.api.CreateTracking(ctx, &item)
		if err != nil {
			return err
		}
		// queued edits carry newer local state than the create response
		if c.queuedBehind(domain.KindTracking, item.QRID) {
			return nil
		}
		if c.mirror.Tracking.Bind(item.QRID, *saved) {
			c.mirror.Changed(domain.KindTracking)
		}
		return nil
	}})
	return item, nil
}

func (c *Coordinator) CreateTrackingSync(ctx context.Context, t domain.Tracking) (*domain.Tracking, error) {
	if c.mirror.Tracking.Has(t.QRID) {
		return nil, errors.Wrapf(domain.ErrDuplicateKey, "tracking %s", t.QRID)
	}
	saved, err := c.api.CreateTracking(ctx, &t)
	if err != nil {
		return nil, err
	}
	if c.mirror.Tracking.Add(*saved) {
		c.mirror.Changed(domain.KindTracking)
	}
	return saved, nil
}

func (c *Coordinator) UpdateTracking(qrID string, fields map[string]interface{}) (domain.Tracking, error) {
	patch, err := domain.NormalizeTrackingPatch(fields)
	if err != nil {
		return domain.Tracking{}, err
	}
	updated, err := c.mirror.Tracking.Modify(qrID, func(t *domain.Tracking) error {
		return t.ApplyPatch(patch)
	})
	if mirror.IsUnknown(err) {
		return domain.Tracking{}, errors.Wrapf(domain.ErrNotFound, "tracking %s", qrID)
	}
	if err != nil {
		return domain.Tracking{}, err
	}
	c.mirror.Changed(domain.KindTracking)

	c.submit(task{op: OpUpdate, kind: domain.KindTracking, key: qrID, run: func(ctx context.Context) error {
		saved, err := c.api.UpdateTracking(ctx, qrID, patch)
		if err != nil {
			return err
		}
		if c.mirror.Tracking.Update(*saved) {
			c.mirror.Changed(domain.KindTracking)
		}
		return nil
	}})
	return updated, nil
}

func (c *Coordinator) DeleteTracking(qrID string) {
	if c.mirror.Tracking.Remove(qrID) {
		c.mirror.Changed(domain.KindTracking)
	}
	if c.creating(domain.KindTracking, qrID) {
		c.mirror.Tracking.Bury(qrID)
	}
	c.submit(task{op: OpDelete, kind: domain.KindTracking, key: qrID, run: func(ctx context.Context) error {
		return c.api.DeleteTracking(ctx, qrID)
	}})
}

// DeleteTrackingSync deletes in the store first. A missing record returns
// ErrNotFound and leaves the mirror without it.
func (c *Coordinator) DeleteTrackingSync(ctx context.Context, qrID string) error {
	err := c.api.DeleteTracking(ctx, qrID)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		if c.mirror.Tracking.Remove(qrID) {
			c.mirror.Changed(domain.KindTracking)
		}
	}
	return err
}
