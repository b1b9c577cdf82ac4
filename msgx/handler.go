package msgx

import (
	"context"
	"slices"
)

// Handler runs custom logic for a webhook payload
type Handler interface {
	Handle(ctx context.Context, p *Payload) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, p *Payload) error

func (f HandlerFunc) Handle(ctx context.Context, p *Payload) error {
	return f(ctx, p)
}

// Filterer is implemented by handlers that only want some payloads.
// ShouldHandle runs before Handle.
type Filterer interface {
	ShouldHandle(p *Payload) bool
}

// Filter restricts a handler to instances and events. Empty means any.
type Filter struct {
	Instances []string
	Events    []WebhookEvent
}

// ShouldHandle reports whether the payload passes the filter
func (f Filter) ShouldHandle(p *Payload) bool {
	if len(f.Instances) > 0 && !slices.Contains(f.Instances, p.Instance()) {
		return false
	}
	if len(f.Events) > 0 && !slices.Contains(f.Events, p.WebhookEvent()) {
		return false
	}
	return true
}

type filteredHandler struct {
	Filter
	next Handler
}

func (h filteredHandler) Handle(ctx context.Context, p *Payload) error {
	return h.next.Handle(ctx, p)
}

// Filtered wraps h so it only sees payloads that pass f
func Filtered(f Filter, h Handler) Handler {
	return filteredHandler{Filter: f, next: h}
}

func shouldHandle(h Handler, p *Payload) bool {
	if f, ok := h.(Filterer); ok {
		return f.ShouldHandle(p)
	}
	return true
}
