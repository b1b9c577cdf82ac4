package msgx

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/wagate/errx"
	"github.com/Abraxas-365/wagate/eventx"
	"github.com/Abraxas-365/wagate/logx"
)

type recorder struct {
	mu     sync.Mutex
	events []eventx.Event
	fail   map[string]error
}

func (r *recorder) Publish(ctx context.Context, e eventx.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.fail[e.Type()]
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type())
	}
	return out
}

func (r *recorder) last() eventx.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func quietLogger() *logx.Logger {
	l := logx.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestProcessor(pub eventx.Publisher) *Processor {
	return NewProcessor(pub, WithProcessorLogger(quietLogger()))
}

func TestProcessMessagesUpsert(t *testing.T) {
	rec := &recorder{}
	p := newTestProcessor(rec)

	err := p.Process(context.Background(), map[string]any{
		"event":    "messages.upsert",
		"instance": "sales",
		"data": map[string]any{
			"key":      map[string]any{"id": "M1", "remoteJid": "5511@s.whatsapp.net", "fromMe": false},
			"pushName": "Ana",
			"message":  map[string]any{"imageMessage": map[string]any{"caption": "look"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{EventTypeWebhookReceived, EventTypeMessageReceived}, rec.types())

	first := rec.events[0]
	assert.Equal(t, "sales", first.Metadata()["instance"])
	assert.Equal(t, "messages.upsert", first.Metadata()["webhook_event"])
	assert.Equal(t, "wagate.webhook", first.Source())

	msg, ok := rec.last().Payload().(MessageReceived)
	require.True(t, ok)
	assert.Equal(t, "M1", msg.MessageID)
	assert.Equal(t, ContentImage, msg.ContentType)
	assert.Equal(t, "Ana", msg.Sender.PushName)
	assert.False(t, msg.IsGroup)
}

func TestProcessMessagesUpdate(t *testing.T) {
	update := func(data map[string]any) map[string]any {
		return map[string]any{"event": "MESSAGES_UPDATE", "instance": "sales", "data": data}
	}

	t.Run("delivered", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestProcessor(rec).Process(context.Background(), update(map[string]any{
			"keyId": "M1", "remoteJid": "5511@s.whatsapp.net", "status": "DELIVERY_ACK",
		})))
		assert.Equal(t, []string{EventTypeWebhookReceived, EventTypeMessageDelivered}, rec.types())
	})

	t.Run("read by numeric code", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestProcessor(rec).Process(context.Background(), update(map[string]any{
			"key":    map[string]any{"id": "M1", "remoteJid": "5511@s.whatsapp.net"},
			"update": map[string]any{"status": float64(4)},
		})))
		assert.Equal(t, []string{EventTypeWebhookReceived, EventTypeMessageRead}, rec.types())

		data := rec.last().Payload().(MessageStatusChanged)
		assert.Equal(t, float64(4), data.Status)
	})

	t.Run("flat and nested statuses both publish", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestProcessor(rec).Process(context.Background(), update(map[string]any{
			"keyId":     "M1",
			"remoteJid": "5511@s.whatsapp.net",
			"status":    float64(3),
			"update":    map[string]any{"status": "READ"},
		})))
		assert.Equal(t, []string{
			EventTypeWebhookReceived,
			EventTypeMessageDelivered,
			EventTypeMessageRead,
		}, rec.types())
	})

	t.Run("missing identifiers publish nothing extra", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestProcessor(rec).Process(context.Background(), update(map[string]any{
			"status": "READ",
		})))
		assert.Equal(t, []string{EventTypeWebhookReceived}, rec.types())
	})

	t.Run("other statuses publish nothing extra", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestProcessor(rec).Process(context.Background(), update(map[string]any{
			"keyId": "M1", "remoteJid": "5511@s.whatsapp.net", "status": "SERVER_ACK",
		})))
		assert.Equal(t, []string{EventTypeWebhookReceived}, rec.types())
	})
}

func TestProcessConnectionUpdate(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, newTestProcessor(rec).Process(context.Background(), map[string]any{
		"event":    "connection.update",
		"instance": "sales",
		"data":     map[string]any{"state": "open", "statusReason": float64(200)},
	}))

	assert.Equal(t, []string{
		EventTypeWebhookReceived,
		EventTypeConnectionUpdated,
		EventTypeInstanceStatusChanged,
	}, rec.types())

	conn := rec.events[1].Payload().(ConnectionUpdated)
	assert.Equal(t, "open", conn.State)
	assert.Equal(t, StatusConnected, conn.Status)
	assert.Equal(t, 200, conn.StatusReason)

	changed := rec.events[2].Payload().(InstanceStatusChanged)
	assert.Nil(t, changed.Previous)
	assert.Equal(t, StatusConnected, changed.Current)
}

func TestProcessQRCodeAndSend(t *testing.T) {
	t.Run("qr code", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestProcessor(rec).Process(context.Background(), map[string]any{
			"event":    "qrcode.updated",
			"instance": "sales",
			"data":     map[string]any{"qrcode": map[string]any{"base64": "img", "code": "2@x"}},
		}))
		assert.Equal(t, []string{EventTypeWebhookReceived, EventTypeQRCodeReceived}, rec.types())
		qr := rec.last().Payload().(QRCodeReceived)
		assert.Equal(t, "img", qr.QRCode)
		assert.Equal(t, 1, qr.Attempt)
	})

	t.Run("empty qr code is skipped", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestProcessor(rec).Process(context.Background(), map[string]any{
			"event": "QRCODE_UPDATED",
			"data":  map[string]any{},
		}))
		assert.Equal(t, []string{EventTypeWebhookReceived}, rec.types())
	})

	t.Run("send message", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestProcessor(rec).Process(context.Background(), map[string]any{
			"event": "send.message",
			"data": map[string]any{
				"key":     map[string]any{"id": "OUT1", "remoteJid": "5511@s.whatsapp.net", "fromMe": true},
				"message": map[string]any{"conversation": "hello"},
			},
		}))
		sent := rec.last().Payload().(MessageSent)
		assert.Equal(t, "OUT1", sent.MessageID)
		assert.Equal(t, ContentText, sent.ContentType)
		assert.Equal(t, "OUT1", sent.Response["key"].(map[string]any)["id"])
	})
}

func TestProcessHandlers(t *testing.T) {
	t.Run("exact before wildcard in registration order", func(t *testing.T) {
		p := newTestProcessor(nil)
		var calls []string
		record := func(name string) Handler {
			return HandlerFunc(func(ctx context.Context, pl *Payload) error {
				calls = append(calls, name)
				return nil
			})
		}

		p.On(Wildcard, record("wildcard-1"))
		p.On("messages.upsert", record("exact-1"))
		p.OnEvent(EventMessagesUpsert, record("exact-2"))
		p.On(Wildcard, record("wildcard-2"))
		p.On("connection.update", record("other"))

		require.NoError(t, p.Process(context.Background(), map[string]any{"event": "MESSAGES_UPSERT"}))
		assert.Equal(t, []string{"exact-1", "exact-2", "wildcard-1", "wildcard-2"}, calls)
		assert.Equal(t, 2, p.HandlerCount("messages-upsert"))
		assert.Equal(t, 2, p.HandlerCount(Wildcard))
	})

	t.Run("filters skip handlers", func(t *testing.T) {
		p := newTestProcessor(nil)
		called := 0
		h := HandlerFunc(func(ctx context.Context, pl *Payload) error {
			called++
			return nil
		})
		p.On(Wildcard, Filtered(Filter{Instances: []string{"sales"}}, h))
		p.On(Wildcard, Filtered(Filter{Events: []WebhookEvent{EventCall}}, h))

		require.NoError(t, p.Process(context.Background(), map[string]any{"event": "CALL", "instance": "support"}))
		assert.Equal(t, 1, called)
	})

	t.Run("handler failure stops the chain", func(t *testing.T) {
		rec := &recorder{}
		p := newTestProcessor(rec)
		boom := errors.New("boom")
		later := false

		p.On("MESSAGES_UPSERT", HandlerFunc(func(ctx context.Context, pl *Payload) error { return boom }))
		p.On(Wildcard, HandlerFunc(func(ctx context.Context, pl *Payload) error {
			later = true
			return nil
		}))

		err := p.Process(context.Background(), map[string]any{"event": "MESSAGES_UPSERT", "instance": "sales"})
		require.Error(t, err)
		assert.True(t, IsProcessingFailed(err))
		assert.ErrorIs(t, err, boom)
		assert.False(t, later)
		assert.Equal(t, EventTypeWebhookReceived, rec.types()[0])
	})

	t.Run("publish failure is a processing failure", func(t *testing.T) {
		rec := &recorder{fail: map[string]error{EventTypeWebhookReceived: errors.New("bus down")}}
		err := newTestProcessor(rec).Process(context.Background(), map[string]any{"event": "CALL"})
		assert.True(t, IsProcessingFailed(err))
	})
}

func TestProcessWithMemoryBus(t *testing.T) {
	bus := eventx.NewMemoryBus()
	var delivered []MessageStatusChanged
	require.NoError(t, eventx.SubscribeTyped(bus, EventTypeMessageDelivered,
		func(ctx context.Context, e eventx.TypedEvent[MessageStatusChanged]) error {
			delivered = append(delivered, e.Data())
			return nil
		}))

	var seen []string
	p := newTestProcessor(bus)
	p.On(Wildcard, HandlerFunc(func(ctx context.Context, pl *Payload) error {
		seen = append(seen, pl.Event())
		return nil
	}))

	require.NoError(t, p.ProcessJSON(context.Background(), []byte(`{
		"event": "messages.update",
		"instance": "sales",
		"data": {"keyId": "M9", "remoteJid": "5511@s.whatsapp.net", "status": 3}
	}`)))

	require.Len(t, delivered, 1)
	assert.Equal(t, "M9", delivered[0].MessageID)
	assert.Equal(t, []string{"messages.update"}, seen)
}

func TestProcessTextMessageOrdering(t *testing.T) {
	var trace []string
	bus := eventx.NewMemoryBus()
	require.NoError(t, bus.Subscribe(eventx.Wildcard, func(ctx context.Context, e eventx.Event) error {
		entry := e.Type()
		if m, ok := e.Payload().(MessageReceived); ok {
			entry += ":" + string(m.ContentType)
		}
		trace = append(trace, entry)
		return nil
	}))

	p := newTestProcessor(bus)
	p.On(Wildcard, HandlerFunc(func(ctx context.Context, pl *Payload) error {
		trace = append(trace, "wildcard")
		return nil
	}))

	require.NoError(t, p.Process(context.Background(), map[string]any{
		"event":    "MESSAGES_UPSERT",
		"instance": "sales",
		"data": map[string]any{
			"key":     map[string]any{"id": "M1", "remoteJid": "5511@s.whatsapp.net"},
			"message": map[string]any{"conversation": "hello"},
		},
	}))

	assert.Equal(t, []string{
		EventTypeWebhookReceived,
		EventTypeMessageReceived + ":" + string(ContentText),
		"wildcard",
	}, trace)
}

func TestProcessJSONRejectsNonObjects(t *testing.T) {
	p := newTestProcessor(nil)
	for _, body := range []string{`not json`, `null`, `[1,2]`} {
		err := p.ProcessJSON(context.Background(), []byte(body))
		assert.True(t, errx.IsCode(err, ErrInvalidPayload), body)
	}
}
