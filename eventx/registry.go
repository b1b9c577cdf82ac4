package eventx

import (
	"context"
	"errors"
	"sync"
)

// Fanout publishes every event to a set of named publishers in registration
// order. A failing publisher does not stop the others.
type Fanout struct {
	mutex      sync.RWMutex
	names      []string
	publishers map[string]Publisher
}

// NewFanout creates an empty fan-out publisher
func NewFanout() *Fanout {
	return &Fanout{publishers: make(map[string]Publisher)}
}

// Register adds a named publisher
func (f *Fanout) Register(name string, p Publisher) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, exists := f.publishers[name]; exists {
		return ErrorRegistry.New(ErrInvalidConfiguration).
			WithDetail("publisher", name).
			WithDetail("reason", "publisher already registered")
	}

	f.names = append(f.names, name)
	f.publishers[name] = p
	return nil
}

// Get retrieves a publisher by name
func (f *Fanout) Get(name string) (Publisher, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	p, exists := f.publishers[name]
	if !exists {
		return nil, ErrorRegistry.New(ErrPublisherNotFound).WithDetail("publisher", name)
	}
	return p, nil
}

// Remove removes a publisher
func (f *Fanout) Remove(name string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, exists := f.publishers[name]; !exists {
		return ErrorRegistry.New(ErrPublisherNotFound).WithDetail("publisher", name)
	}
	delete(f.publishers, name)
	for i, n := range f.names {
		if n == name {
			f.names = append(f.names[:i], f.names[i+1:]...)
			break
		}
	}
	return nil
}

// Names lists registered publishers in order
func (f *Fanout) Names() []string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return append([]string(nil), f.names...)
}

func (f *Fanout) Publish(ctx context.Context, event Event) error {
	f.mutex.RLock()
	targets := make([]Publisher, 0, len(f.names))
	names := append([]string(nil), f.names...)
	for _, n := range names {
		targets = append(targets, f.publishers[n])
	}
	f.mutex.RUnlock()

	var errs []error
	for i, p := range targets {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, ErrorRegistry.New(ErrPublishFailed).
				WithCause(err).
				WithDetail("publisher", names[i]).
				WithDetail("event_type", event.Type()))
		}
	}
	return errors.Join(errs...)
}
