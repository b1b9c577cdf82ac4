package msgx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Abraxas-365/wagate/eventx"
	"github.com/Abraxas-365/wagate/logx"
)

// Wildcard registers a handler for every event
const Wildcard = eventx.Wildcard

// Processor normalizes webhook payloads, publishes domain events and runs
// registered handlers. Process is safe for concurrent use.
type Processor struct {
	publisher eventx.Publisher
	logger    *logx.Logger
	source    string

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the logger
func WithProcessorLogger(l *logx.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

// WithEventSource sets the source stamped on published events
func WithEventSource(source string) ProcessorOption {
	return func(p *Processor) { p.source = source }
}

// NewProcessor creates a processor publishing to publisher. A nil publisher
// drops domain events.
func NewProcessor(publisher eventx.Publisher, opts ...ProcessorOption) *Processor {
	if publisher == nil {
		publisher = eventx.PublisherFunc(func(context.Context, eventx.Event) error { return nil })
	}
	p := &Processor{
		publisher: publisher,
		logger:    logx.GetLogger(),
		source:    "wagate.webhook",
		handlers:  make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// On registers a handler for an event name, or Wildcard
func (p *Processor) On(event string, h Handler) {
	key := event
	if event != Wildcard {
		key = NormalizeEventName(event)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[key] = append(p.handlers[key], h)
}

// OnEvent registers a handler for a classified event
func (p *Processor) OnEvent(e WebhookEvent, h Handler) {
	p.On(e.String(), h)
}

// HandlerCount returns the handlers registered for an event name
func (p *Processor) HandlerCount(event string) int {
	key := event
	if event != Wildcard {
		key = NormalizeEventName(event)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers[key])
}

// ProcessJSON decodes body and processes it
func (p *Processor) ProcessJSON(ctx context.Context, body []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		e := Registry.New(ErrInvalidPayload)
		if err != nil {
			e.WithCause(err)
		}
		return e
	}
	return p.Process(ctx, raw)
}

// Process handles one decoded payload. The webhook.received event is
// published before anything else, so it survives handler failures.
func (p *Processor) Process(ctx context.Context, raw map[string]any) error {
	payload := NewPayload(raw)
	name := payload.Event()
	instance := payload.Instance()
	event := payload.WebhookEvent()

	log := p.logger.With(logx.Fields{"event": name, "instance": instance})
	log.Log(logx.DebugLevel, "Processing webhook", nil)

	fail := func(err error) error {
		log.Log(logx.ErrorLevel, "Webhook processing failed", logx.Fields{"error": err})
		return Registry.New(ErrProcessingFailed).
			WithDetail("event", name).
			WithDetail("instance", instance).
			WithCause(err)
	}

	if err := publish(ctx, p, EventTypeWebhookReceived, instance, name, WebhookReceived{
		Event:    name,
		Instance: instance,
		Payload:  raw,
	}); err != nil {
		return fail(err)
	}

	if err := p.handleBuiltIn(ctx, event, name, payload); err != nil {
		return fail(err)
	}

	for _, h := range p.handlersFor(name) {
		if !shouldHandle(h, payload) {
			continue
		}
		if err := h.Handle(ctx, payload); err != nil {
			return fail(err)
		}
	}
	return nil
}

// handlersFor returns exact handlers followed by wildcard handlers
func (p *Processor) handlersFor(name string) []Handler {
	key := NormalizeEventName(name)

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Handler, 0, len(p.handlers[key])+len(p.handlers[Wildcard]))
	if key != "" {
		out = append(out, p.handlers[key]...)
	}
	return append(out, p.handlers[Wildcard]...)
}

func (p *Processor) handleBuiltIn(ctx context.Context, event WebhookEvent, name string, payload *Payload) error {
	switch event {
	case EventMessagesUpsert:
		return p.messageReceived(ctx, name, payload)
	case EventMessagesUpdate:
		return p.messageUpdated(ctx, name, payload)
	case EventSendMessage:
		return p.messageSent(ctx, name, payload)
	case EventConnectionUpdate:
		return p.connectionUpdated(ctx, name, payload)
	case EventQRCodeUpdated:
		return p.qrCodeUpdated(ctx, name, payload)
	case EventUnknown,
		EventApplicationStartup,
		EventMessagesSet, EventMessagesEdited, EventMessagesDelete,
		EventContactsSet, EventContactsUpsert, EventContactsUpdate,
		EventPresenceUpdate,
		EventChatsSet, EventChatsUpsert, EventChatsUpdate, EventChatsDelete,
		EventGroupsUpsert, EventGroupUpdate, EventGroupParticipantsUpdate,
		EventLabelsEdit, EventLabelsAssociation,
		EventCall,
		EventTypebotStart, EventTypebotChangeStatus,
		EventRemoveInstance, EventLogoutInstance:
		return nil
	}
	return fmt.Errorf("unhandled webhook event %d", event)
}

func (p *Processor) messageReceived(ctx context.Context, name string, payload *Payload) error {
	instance := payload.Instance()
	return publish(ctx, p, EventTypeMessageReceived, instance, name, MessageReceived{
		Instance:    instance,
		MessageID:   payload.MessageID(),
		RemoteJID:   payload.RemoteJID(),
		Sender:      payload.Sender(),
		ContentType: payload.ContentType(),
		IsGroup:     payload.IsGroup(),
		GroupID:     payload.GroupID(),
		Message:     payload.Message(),
	})
}

// messageUpdated checks delivered and read independently, so one payload can
// publish both
func (p *Processor) messageUpdated(ctx context.Context, name string, payload *Payload) error {
	id, jid := payload.MessageID(), payload.RemoteJID()
	if id == "" || jid == "" {
		return nil
	}

	instance := payload.Instance()
	statuses := payload.DeliveryStatuses()
	base := MessageStatusChanged{
		Instance:  instance,
		MessageID: id,
		RemoteJID: jid,
		FromMe:    payload.FromMe(),
	}

	if v, ok := matchStatus(statuses, 3, "DELIVERY_ACK"); ok {
		data := base
		data.Status = v
		if err := publish(ctx, p, EventTypeMessageDelivered, instance, name, data); err != nil {
			return err
		}
	}
	if v, ok := matchStatus(statuses, 4, "READ"); ok {
		data := base
		data.Status = v
		if err := publish(ctx, p, EventTypeMessageRead, instance, name, data); err != nil {
			return err
		}
	}
	return nil
}

func matchStatus(statuses []any, code int, label string) (any, bool) {
	for _, s := range statuses {
		if str, ok := s.(string); ok && str == label {
			return s, true
		}
		if n, ok := toInt(s); ok && n == code {
			return s, true
		}
	}
	return nil, false
}

func (p *Processor) messageSent(ctx context.Context, name string, payload *Payload) error {
	instance := payload.Instance()
	return publish(ctx, p, EventTypeMessageSent, instance, name, MessageSent{
		Instance:    instance,
		MessageID:   payload.MessageID(),
		RemoteJID:   payload.RemoteJID(),
		ContentType: payload.ContentType(),
		Message:     payload.Message(),
		Response:    payload.Data(),
	})
}

func (p *Processor) connectionUpdated(ctx context.Context, name string, payload *Payload) error {
	instance := payload.Instance()
	state := payload.ConnectionState()
	status := ParseConnectionStatus(state)

	if err := publish(ctx, p, EventTypeConnectionUpdated, instance, name, ConnectionUpdated{
		Instance:     instance,
		State:        state,
		Status:       status,
		StatusReason: payload.StatusReason(),
	}); err != nil {
		return err
	}
	return publish(ctx, p, EventTypeInstanceStatusChanged, instance, name, InstanceStatusChanged{
		Instance: instance,
		Current:  status,
	})
}

func (p *Processor) qrCodeUpdated(ctx context.Context, name string, payload *Payload) error {
	qr := payload.QRCode()
	if qr == "" {
		return nil
	}
	instance := payload.Instance()
	return publish(ctx, p, EventTypeQRCodeReceived, instance, name, QRCodeReceived{
		Instance:    instance,
		QRCode:      qr,
		PairingCode: payload.PairingCode(),
		Attempt:     payload.QRAttempt(),
	})
}

func publish[T any](ctx context.Context, p *Processor, eventType, instance, webhookEvent string, data T) error {
	event := eventx.NewEvent(eventType, data, eventx.EventOptions{
		Source: p.source,
		Metadata: map[string]any{
			eventx.MetadataInstance:     instance,
			eventx.MetadataWebhookEvent: webhookEvent,
		},
	})
	return p.publisher.Publish(ctx, event)
}
