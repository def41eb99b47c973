// Package eventbus provides the in-process implementation of ports.EventBus.
package eventbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
	"github.com/tejashwikalptaru/gotune-queue/internal/ports"
)

// ErrBusClosed is returned by Close when the bus was already closed.
var ErrBusClosed = errors.New("event bus already closed")

// SyncEventBus delivers events synchronously on the publishing goroutine.
//
// Handlers for a type run in subscription order, followed by wildcard
// handlers. The handler list is copied before delivery, so handlers may
// subscribe or unsubscribe while an event is being delivered.
//
// Handlers must not block: the queue publishes from its mutation paths and
// the memory monitor from its sampling loop.
type SyncEventBus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	byType   map[domain.EventType][]subscription
	wildcard []subscription
	nextID   uint64
	closed   bool
}

type subscription struct {
	id      domain.SubscriptionID
	handler domain.EventHandler
}

// NewSyncEventBus creates a new synchronous event bus. A nil logger disables logging.
func NewSyncEventBus(logger *slog.Logger) *SyncEventBus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SyncEventBus{
		logger: logger,
		byType: make(map[domain.EventType][]subscription),
	}
}

// Publish delivers event to its subscribers. Panics in handlers are recovered
// and logged; the remaining handlers still run.
func (bus *SyncEventBus) Publish(event domain.Event) {
	if event == nil {
		return
	}

	handlers, ok := bus.handlersFor(event.Type())
	if !ok {
		return
	}

	for _, sub := range handlers {
		bus.deliver(sub, event)
	}
}

// handlersFor copies the handlers for an event type under the read lock.
func (bus *SyncEventBus) handlersFor(eventType domain.EventType) ([]subscription, bool) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	if bus.closed {
		return nil, false
	}

	typed := bus.byType[eventType]
	out := make([]subscription, 0, len(typed)+len(bus.wildcard))
	out = append(out, typed...)
	out = append(out, bus.wildcard...)
	return out, true
}

func (bus *SyncEventBus) deliver(sub subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("event handler panicked",
				slog.Any("panic", r),
				slog.String("event_type", string(event.Type())),
				slog.String("subscription", string(sub.id)))
		}
	}()

	sub.handler(event)
}

// Subscribe registers handler for events of eventType.
// It panics on a nil handler or a closed bus, both of which are programming errors.
func (bus *SyncEventBus) Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	sub := bus.newSubscriptionLocked(string(eventType), handler)
	bus.byType[eventType] = append(bus.byType[eventType], sub)
	return sub.id
}

// SubscribeAll registers handler for every event type.
func (bus *SyncEventBus) SubscribeAll(handler domain.EventHandler) domain.SubscriptionID {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	sub := bus.newSubscriptionLocked("*", handler)
	bus.wildcard = append(bus.wildcard, sub)
	return sub.id
}

func (bus *SyncEventBus) newSubscriptionLocked(scope string, handler domain.EventHandler) subscription {
	if handler == nil {
		panic("event handler cannot be nil")
	}
	if bus.closed {
		panic("cannot subscribe to closed event bus")
	}

	bus.nextID++
	return subscription{
		id:      domain.SubscriptionID(fmt.Sprintf("%s#%d", scope, bus.nextID)),
		handler: handler,
	}
}

// Unsubscribe removes a subscription while keeping the order of the others.
func (bus *SyncEventBus) Unsubscribe(id domain.SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	match := func(s subscription, _ int) bool { return s.id == id }

	for eventType, subs := range bus.byType {
		kept := lo.Reject(subs, match)
		if len(kept) == len(subs) {
			continue
		}
		if len(kept) == 0 {
			delete(bus.byType, eventType)
		} else {
			bus.byType[eventType] = kept
		}
		return
	}

	bus.wildcard = lo.Reject(bus.wildcard, match)
}

// HasSubscribers reports whether an event of eventType would reach any handler.
func (bus *SyncEventBus) HasSubscribers(eventType domain.EventType) bool {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	return len(bus.byType[eventType]) > 0 || len(bus.wildcard) > 0
}

// SubscriberCount returns the number of live subscriptions, wildcard included.
func (bus *SyncEventBus) SubscriberCount() int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	count := len(bus.wildcard)
	for _, subs := range bus.byType {
		count += len(subs)
	}
	return count
}

// Close drops every subscription. A second Close returns ErrBusClosed.
func (bus *SyncEventBus) Close() error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	if bus.closed {
		return ErrBusClosed
	}

	bus.closed = true
	bus.byType = make(map[domain.EventType][]subscription)
	bus.wildcard = nil
	return nil
}

var _ ports.EventBus = (*SyncEventBus)(nil)
