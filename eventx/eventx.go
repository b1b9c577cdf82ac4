package eventx

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultSource is used when EventOptions leaves Source empty
	DefaultSource = "wagate"
	// SchemaVersion is stamped on events that do not set a version
	SchemaVersion = "1.0"
)

// Event is the base interface for all events
type Event interface {
	ID() string
	Type() string
	Timestamp() time.Time
	Source() string
	Version() string
	Payload() any
	Metadata() map[string]any
}

// TypedEvent provides type-safe access to event data
type TypedEvent[T any] interface {
	Event
	Data() T
}

// EventOptions configure event creation. Zero fields take the defaults.
type EventOptions struct {
	Source   string
	Version  string
	Metadata map[string]any
}

// header carries the fields shared by every event regardless of payload
type header struct {
	id        string
	eventType string
	at        time.Time
	source    string
	version   string
	metadata  map[string]any
}

func newHeader(id, eventType string, at time.Time, opts []EventOptions) header {
	h := header{
		id:        id,
		eventType: eventType,
		at:        at,
		source:    DefaultSource,
		version:   SchemaVersion,
	}
	if len(opts) > 0 {
		o := opts[0]
		if o.Source != "" {
			h.source = o.Source
		}
		if o.Version != "" {
			h.version = o.Version
		}
		h.metadata = o.Metadata
	}
	if h.metadata == nil {
		h.metadata = map[string]any{}
	}
	return h
}

func (h header) ID() string               { return h.id }
func (h header) Type() string             { return h.eventType }
func (h header) Timestamp() time.Time     { return h.at }
func (h header) Source() string           { return h.source }
func (h header) Version() string          { return h.version }
func (h header) Metadata() map[string]any { return h.metadata }

type event[T any] struct {
	header
	data T
}

func (e event[T]) Payload() any { return e.data }
func (e event[T]) Data() T      { return e.data }

// NewEvent creates a typed event with a fresh UUID, stamped now in UTC
func NewEvent[T any](eventType string, data T, opts ...EventOptions) TypedEvent[T] {
	return NewEventWithID(uuid.NewString(), eventType, data, time.Now().UTC(), opts...)
}

// NewEventWithID rebuilds an event that crossed a process boundary
func NewEventWithID[T any](id, eventType string, data T, at time.Time, opts ...EventOptions) TypedEvent[T] {
	return event[T]{header: newHeader(id, eventType, at, opts), data: data}
}

// InstanceOf returns the gateway instance an event belongs to, if any
func InstanceOf(e Event) string {
	return metadataString(e.Metadata(), MetadataInstance)
}
