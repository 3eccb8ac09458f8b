package mirror

import (
	"errors"
	"sync"

	"github.com/talkincode/shopsync/internal/broadcast"
	"github.com/talkincode/shopsync/internal/domain"
	"go.uber.org/zap"
)

var errNotInMirror = errors.New("mirror: unknown key")

// IsUnknown reports whether err came from a lookup of a key the mirror does not hold
func IsUnknown(err error) bool {
	return errors.Is(err, errNotInMirror)
}

type Options struct {
	// Client is the origin token this mirror's own mutations carry
	Client string
	// IgnoreOwn drops events whose origin is Client
	IgnoreOwn bool
	View      View
}

// Mirror is the client side copy of the three store collections
type Mirror struct {
	Products *Collection[domain.Product]
	Tracking *Collection[domain.Tracking]
	Orders   *Collection[domain.Order]

	client    string
	ignoreOwn bool

	mu      sync.RWMutex
	view    View
	lastSeq uint64
}

func New(opts Options) *Mirror {
	view := opts.View
	if view == nil {
		view = NopView{}
	}
	return &Mirror{
		Products:  NewCollection(domain.Product.Identities),
		Tracking:  NewCollection(domain.Tracking.Identities),
		Orders:    NewCollection(domain.Order.Identities),
		client:    opts.Client,
		ignoreOwn: opts.IgnoreOwn,
		view:      view,
	}
}

func (m *Mirror) Client() string {
	return m.client
}

// SetView swaps the view that receives render calls
func (m *Mirror) SetView(v View) {
	if v == nil {
		v = NopView{}
	}
	m.mu.Lock()
	m.view = v
	m.mu.Unlock()
}

// LastSeq is the sequence number of the newest applied event
func (m *Mirror) LastSeq() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeq
}

// Changed renders the current view if it shows kind
func (m *Mirror) Changed(kind domain.EntityKind) {
	m.mu.RLock()
	view := m.view
	m.mu.RUnlock()
	if view.DependsOn(kind) {
		view.Render(kind)
	}
}

// Apply reconciles one broadcast event and reports whether the mirror changed
func (m *Mirror) Apply(ev broadcast.Event) (bool, error) {
	m.mu.Lock()
	if ev.Seq > m.lastSeq {
		m.lastSeq = ev.Seq
	}
	m.mu.Unlock()

	if m.ignoreOwn && ev.FromOrigin(m.client) {
		return false, nil
	}

	var (
		changed bool
		err     error
	)
	kind := ev.Type.Entity()
	switch kind {
	case domain.KindProduct:
		changed, err = applyTo(m.Products, ev)
	case domain.KindTracking:
		changed, err = applyTo(m.Tracking, ev)
	case domain.KindOrder:
		changed, err = applyTo(m.Orders, ev)
	default:
		return false, errors.New("mirror: unknown event type " + string(ev.Type))
	}
	if err != nil {
		zap.L().Warn("mirror: drop malformed event",
			zap.String("type", string(ev.Type)),
			zap.Uint64("seq", ev.Seq),
			zap.Error(err),
		)
		return false, err
	}
	if changed {
		m.Changed(kind)
	}
	return changed, nil
}

func applyTo[T any](c *Collection[T], ev broadcast.Event) (bool, error) {
	if ev.Type.Op() == broadcast.OpDeleted {
		key, err := ev.DeletedKey()
		if err != nil {
			return false, err
		}
		return c.Forget(key), nil
	}
	var item T
	if err := ev.Decode(&item); err != nil {
		return false, err
	}
	if ev.Type.Op() == broadcast.OpAdded {
		return c.Upsert(item, ev.Ref), nil
	}
	if ev.Ref != "" && c.Bind(ev.Ref, item) {
		return true, nil
	}
	return c.Update(item), nil
}

// Counts returns the size of every collection
func (m *Mirror) Counts() map[domain.EntityKind]int {
	return map[domain.EntityKind]int{
		domain.KindProduct:  m.Products.Len(),
		domain.KindTracking: m.Tracking.Len(),
		domain.KindOrder:    m.Orders.Len(),
	}
}
