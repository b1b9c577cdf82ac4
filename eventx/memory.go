package eventx

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryBus delivers events synchronously in subscription order: handlers of
// the exact type first, then wildcard handlers. Every handler runs even when
// an earlier one fails; the failures are joined.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewMemoryBus creates an empty in-process bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

func (b *MemoryBus) Subscribe(eventType string, handler Handler) error {
	if eventType == "" || handler == nil {
		return ErrorRegistry.New(ErrInvalidConfiguration).
			WithDetail("reason", "event type and handler are required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *MemoryBus) Unsubscribe(eventType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, eventType)
	return nil
}

func (b *MemoryBus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

func (b *MemoryBus) ListEventTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()])+len(b.handlers[Wildcard]))
	handlers = append(handlers, b.handlers[event.Type()]...)
	if event.Type() != Wildcard {
		handlers = append(handlers, b.handlers[Wildcard]...)
	}
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return ErrorRegistry.New(ErrHandlerFailed).
		WithCause(errors.Join(errs...)).
		WithDetail("event_id", event.ID()).
		WithDetail("event_type", event.Type())
}
