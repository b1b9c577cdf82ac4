package eventx

import (
	"context"
	"reflect"
)

// Wildcard subscribes a handler to every event type
const Wildcard = "*"

// Handler processes one event
type Handler func(ctx context.Context, e Event) error

// TypedHandler provides type-safe event handling
type TypedHandler[T any] func(ctx context.Context, e TypedEvent[T]) error

// Publisher accepts domain events. It is the only thing producers depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus is an in-process publisher with subscriptions
type Bus interface {
	Publisher

	// Subscribe registers a handler for an event type or Wildcard
	Subscribe(eventType string, handler Handler) error

	// Unsubscribe removes every handler for an event type
	Unsubscribe(eventType string) error

	// HandlerCount returns the number of handlers for an event type
	HandlerCount(eventType string) int

	// ListEventTypes returns the event types with handlers
	ListEventTypes() []string
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// SubscribeTyped registers a handler that only accepts events carrying T
func SubscribeTyped[T any](bus Bus, eventType string, handler TypedHandler[T]) error {
	return bus.Subscribe(eventType, func(ctx context.Context, e Event) error {
		if typed, ok := e.(TypedEvent[T]); ok {
			return handler(ctx, typed)
		}
		return ErrorRegistry.New(ErrInvalidEventType).
			WithDetail("event_type", e.Type()).
			WithDetail("expected_type", reflect.TypeOf((*T)(nil)).Elem().String()).
			WithDetail("actual_type", reflect.TypeOf(e.Payload()).String())
	})
}
