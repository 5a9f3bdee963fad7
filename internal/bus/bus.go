package bus

import (
	"strings"
	"sync"

	"github.com/yanun0323/logs"

	"github.com/alexanu/nautilus-trader/internal/events"
	"github.com/alexanu/nautilus-trader/pkg/exception"
)

// Handler consumes one published event. Handlers must treat the event
// as read-only.
type Handler func(ev events.Event)

// Subscription identifies one registered handler for unsubscribe.
type Subscription uint64

type subscriber struct {
	id      Subscription
	pattern string
	handler Handler
}

// MessageBus routes events to subscribed handlers. Delivery is
// synchronous and in publication order; one failing handler never
// blocks delivery to the rest.
type MessageBus struct {
	mu       sync.Mutex
	nextID   Subscription
	subs     []subscriber
	failures uint64
	onError  func(topic string, recovered any)
}

// New creates an empty bus.
func New() *MessageBus {
	return &MessageBus{}
}

// OnHandlerError installs a hook invoked after a handler panic has been
// recovered. Used by the kernel to surface BusHandlerFailure events.
func (b *MessageBus) OnHandlerError(fn func(topic string, recovered any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a topic pattern. Patterns match the
// topic exactly, or by prefix when they end with "*". A handler added
// during an in-flight publish does not receive that event.
func (b *MessageBus) Subscribe(pattern string, handler Handler) (Subscription, error) {
	if handler == nil {
		return 0, exception.ErrBusNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, pattern: pattern, handler: handler})
	return b.nextID, nil
}

// Unsubscribe removes a previously registered handler.
func (b *MessageBus) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every handler whose pattern matches the
// topic at publish time. A panicking handler is isolated: the panic is
// recovered, logged, counted, and delivery continues.
func (b *MessageBus) Publish(topic string, ev events.Event) {
	b.mu.Lock()
	matched := make([]subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if matchTopic(s.pattern, topic) {
			matched = append(matched, s)
		}
	}
	onError := b.onError
	b.mu.Unlock()

	for _, s := range matched {
		b.deliver(topic, s, ev, onError)
	}
}

func (b *MessageBus) deliver(topic string, s subscriber, ev events.Event, onError func(string, any)) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.failures++
			b.mu.Unlock()
			logs.Errorf("bus handler panic, topic: %s, recovered: %+v", topic, r)
			if onError != nil {
				onError(topic, r)
			}
		}
	}()
	s.handler(ev)
}

// HandlerFailures returns the number of recovered handler panics.
func (b *MessageBus) HandlerFailures() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// SubscriberCount returns the number of registered handlers.
func (b *MessageBus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func matchTopic(pattern, topic string) bool {
	if pattern == topic || pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(topic, pattern[:len(pattern)-1])
	}
	return false
}
