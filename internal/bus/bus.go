// Package bus is the publish/subscribe notification layer. It holds no
// durable state; durability belongs to the queue manager. Subscribers that
// miss events while disconnected reconcile via a full refetch, not bus
// replay.
package bus

import (
	"sync"

	"go.uber.org/zap"

	"syncline/internal/model"
)

// Handler is invoked once per published event on a subscribed channel, in
// publish order.
type Handler func(evt model.Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus fans events out to local subscribers and, when a forwarder is set,
// mirrors local publications to the remote link.
type Bus struct {
	l *zap.Logger

	mu      sync.RWMutex
	subs    map[string][]subscription
	nextID  int
	forward func(evt model.Event)
}

func New(l *zap.Logger) *Bus {
	return &Bus{
		l:    l,
		subs: make(map[string][]subscription),
	}
}

// Subscribe registers a handler for a channel and returns the capability to
// unsubscribe.
func (b *Bus) Subscribe(channel string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()

	b.nextID++
	id := b.nextID
	b.subs[channel] = append(b.subs[channel], subscription{id: id, handler: handler})

	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[channel]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[channel] = append(subs[:i:i], subs[i+1:]...)

				break
			}
		}
	}
}

// Publish delivers the event to all current subscribers of its channel and
// forwards it to the remote link when one is attached.
func (b *Bus) Publish(evt model.Event) {
	b.Dispatch(evt)

	b.mu.RLock()
	forward := b.forward
	b.mu.RUnlock()

	if forward != nil {
		forward(evt)
	}
}

// Dispatch delivers to local subscribers only. The remote link uses it to
// inject inbound events without echoing them back upstream.
func (b *Bus) Dispatch(evt model.Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[evt.Channel]))
	copy(subs, b.subs[evt.Channel])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(evt)
	}

	b.l.Debug("Event dispatched",
		zap.String("channel", evt.Channel),
		zap.String("tenant_id", evt.TenantID),
		zap.Int("subscribers", len(subs)),
	)
}

// SetForwarder attaches the remote link's upstream path.
func (b *Bus) SetForwarder(forward func(evt model.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.forward = forward
}
