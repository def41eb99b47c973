// Package ports define the interfaces between the queue engine and its collaborators.
// Services depend only on these interfaces; adapters implement them.
package ports

import (
	"github.com/tejashwikalptaru/gotune-queue/internal/domain"
)

// EventBus carries domain events from producers (queue, memory monitor,
// image loader) to consumers (views, logging) without either side holding a
// reference to the other.
//
// Thread-safety: Implementations must allow Publish, Subscribe and
// Unsubscribe from any goroutine.
//
// Example usage:
//
//	subID := bus.Subscribe(domain.EventQueueChanged, func(event domain.Event) {
//	    e := event.(domain.QueueChangedEvent)
//	    list.Refresh(e.Queue)
//	})
//	defer bus.Unsubscribe(subID)
type EventBus interface {
	// Publish delivers the event to every handler subscribed to its type and
	// to every wildcard handler. Publishing on a closed bus is a no-op.
	Publish(event domain.Event)

	// Subscribe registers a handler for one event type.
	Subscribe(eventType domain.EventType, handler domain.EventHandler) domain.SubscriptionID

	// Unsubscribe removes a subscription. Unknown ids are ignored.
	Unsubscribe(id domain.SubscriptionID)

	// SubscribeAll registers a handler for every event type.
	SubscribeAll(handler domain.EventHandler) domain.SubscriptionID

	// HasSubscribers reports whether publishing eventType would reach anyone.
	HasSubscribers(eventType domain.EventType) bool

	// Close drops all subscriptions. Later publishes are ignored.
	Close() error
}
