package eventx

import (
	"encoding/json"
	"time"
)

// Metadata keys lifted onto the envelope so stream and queue consumers can
// route without decoding the payload
const (
	MetadataInstance     = "instance"
	MetadataWebhookEvent = "webhook_event"
)

// Envelope is the JSON form of an event on the stream and on SQS
type Envelope struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Source       string          `json:"source"`
	Version      string          `json:"version"`
	Instance     string          `json:"instance,omitempty"`
	WebhookEvent string          `json:"webhook_event,omitempty"`
	Data         json.RawMessage `json:"data"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

func metadataString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Encode writes an event as an envelope
func Encode(event Event) ([]byte, error) {
	fail := func(err error) error {
		return ErrorRegistry.New(ErrSerializationFailed).
			WithCause(err).
			WithDetail("event_id", event.ID()).
			WithDetail("event_type", event.Type())
	}

	data, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, fail(err)
	}

	meta := event.Metadata()
	out, err := json.Marshal(Envelope{
		ID:           event.ID(),
		Type:         event.Type(),
		OccurredAt:   event.Timestamp(),
		Source:       event.Source(),
		Version:      event.Version(),
		Instance:     metadataString(meta, MetadataInstance),
		WebhookEvent: metadataString(meta, MetadataWebhookEvent),
		Data:         data,
		Metadata:     meta,
	})
	if err != nil {
		return nil, fail(err)
	}
	return out, nil
}

// DecodeEnvelope reads the envelope and leaves the payload raw
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrorRegistry.New(ErrSerializationFailed).WithCause(err)
	}
	if env.ID == "" || env.Type == "" {
		return nil, ErrorRegistry.New(ErrSerializationFailed).
			WithDetail("reason", "envelope without id or type")
	}
	return &env, nil
}

// Open decodes the envelope payload into T. Instance and webhook event are
// restored into the metadata when the producer dropped them.
func Open[T any](env *Envelope) (TypedEvent[T], error) {
	var data T
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, ErrorRegistry.New(ErrSerializationFailed).
				WithCause(err).
				WithDetail("event_id", env.ID).
				WithDetail("event_type", env.Type)
		}
	}

	meta := make(map[string]any, len(env.Metadata)+2)
	for k, v := range env.Metadata {
		meta[k] = v
	}
	if _, ok := meta[MetadataInstance]; !ok && env.Instance != "" {
		meta[MetadataInstance] = env.Instance
	}
	if _, ok := meta[MetadataWebhookEvent]; !ok && env.WebhookEvent != "" {
		meta[MetadataWebhookEvent] = env.WebhookEvent
	}

	return NewEventWithID(env.ID, env.Type, data, env.OccurredAt, EventOptions{
		Source:   env.Source,
		Version:  env.Version,
		Metadata: meta,
	}), nil
}

// Decode reads an envelope and its payload in one step
func Decode[T any](data []byte) (TypedEvent[T], error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	return Open[T](env)
}
