package broadcast

import (
	"sync/atomic"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/shopsync/pkg/metrics"
	"go.uber.org/zap"
)

// Topic is the in-process bus topic every event is published on
const Topic = "shopsync:event"

// Broadcaster stamps mutation results into events and fans them out over the bus.
// Subscribers registered with Subscribe run synchronously in publish order.
type Broadcaster struct {
	bus EventBus.Bus
	seq atomic.Uint64
}

func NewBroadcaster(bus EventBus.Bus) *Broadcaster {
	if bus == nil {
		bus = EventBus.New()
	}
	return &Broadcaster{bus: bus}
}

func (b *Broadcaster) Bus() EventBus.Bus {
	return b.bus
}

// Publish emits one event for a successful mutation
func (b *Broadcaster) Publish(kind Kind, payload interface{}, origin Origin) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("broadcast: encode payload failed", zap.String("type", string(kind)), zap.Error(err))
		return Event{}, err
	}
	ev := Event{
		Type:   kind,
		Seq:    b.seq.Add(1),
		Origin: origin.Client,
		Ref:    origin.Ref,
		Data:   data,
	}
	b.bus.Publish(Topic, ev)
	metrics.Incr("events_published")
	zap.L().Debug("broadcast: event published",
		zap.String("type", string(kind)),
		zap.Uint64("seq", ev.Seq),
		zap.String("origin", ev.Origin),
	)
	return ev, nil
}

// Subscribe registers a synchronous handler
func (b *Broadcaster) Subscribe(fn func(Event)) error {
	return b.bus.Subscribe(Topic, fn)
}

// SubscribeAsync registers a handler that runs off the publishing goroutine, one event at a time
func (b *Broadcaster) SubscribeAsync(fn func(Event)) error {
	return b.bus.SubscribeAsync(Topic, fn, true)
}

func (b *Broadcaster) Unsubscribe(fn func(Event)) error {
	return b.bus.Unsubscribe(Topic, fn)
}

// WaitAsync blocks until async handlers are idle
func (b *Broadcaster) WaitAsync() {
	b.bus.WaitAsync()
}
