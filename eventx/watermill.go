package eventx

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	MetadataEventType = "event_type"
	MetadataSource    = "source"
)

// WatermillPublisher writes events as JSON messages to a watermill topic
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a publisher bound to one topic
func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher, topic: topic}
}

func (w *WatermillPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID(), payload)
	msg.Metadata.Set(MetadataEventType, event.Type())
	msg.Metadata.Set(MetadataSource, event.Source())
	msg.SetContext(ctx)

	if err := w.publisher.Publish(w.topic, msg); err != nil {
		return ErrorRegistry.New(ErrPublishFailed).
			WithCause(err).
			WithDetail("topic", w.topic).
			WithDetail("event_type", event.Type())
	}
	return nil
}

// ConsumeWatermill reads events from a topic until ctx is done. Messages that
// cannot be decoded are acked and dropped; handler failures are nacked.
func ConsumeWatermill(ctx context.Context, sub message.Subscriber, topic string, handler Handler) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return ErrorRegistry.New(ErrInvalidConfiguration).
			WithCause(err).
			WithDetail("topic", topic)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			event, err := Decode[map[string]any](msg.Payload)
			if err != nil {
				msg.Ack()
				continue
			}
			if err := handler(msg.Context(), event); err != nil {
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}
