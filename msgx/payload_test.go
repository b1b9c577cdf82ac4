package msgx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadExtractors(t *testing.T) {
	p := NewPayload(map[string]any{
		"event":    "messages.upsert",
		"instance": "sales",
		"data": map[string]any{
			"key": map[string]any{
				"id":          "ABC123",
				"remoteJid":   "1203630@g.us",
				"fromMe":      false,
				"participant": "5511999@s.whatsapp.net",
			},
			"pushName":    "Ana",
			"messageType": "conversation",
			"message":     map[string]any{"conversation": "hi"},
		},
	})

	assert.Equal(t, "messages.upsert", p.Event())
	assert.Equal(t, EventMessagesUpsert, p.WebhookEvent())
	assert.Equal(t, "sales", p.Instance())
	assert.Equal(t, "ABC123", p.MessageID())
	assert.Equal(t, "1203630@g.us", p.RemoteJID())
	assert.True(t, p.IsGroup())
	assert.Equal(t, "1203630@g.us", p.GroupID())
	assert.Equal(t, ContentText, p.ContentType())
	assert.Equal(t, Sender{JID: "5511999@s.whatsapp.net", PushName: "Ana"}, p.Sender())
}

func TestPayloadLookupOrder(t *testing.T) {
	t.Run("data wins over top level", func(t *testing.T) {
		p := NewPayload(map[string]any{
			"state": "close",
			"data":  map[string]any{"state": "open"},
		})
		assert.Equal(t, "open", p.ConnectionState())
	})

	t.Run("array data uses first element", func(t *testing.T) {
		p := NewPayload(map[string]any{
			"data": []any{map[string]any{"keyId": "k1"}, map[string]any{"keyId": "k2"}},
		})
		assert.Equal(t, "k1", p.MessageID())
	})

	t.Run("numeric segments index arrays", func(t *testing.T) {
		p := NewPayload(map[string]any{"items": []any{"a", "b"}})
		assert.Equal(t, "b", p.GetString("items.1", ""))
		assert.Equal(t, "none", p.GetString("items.5", "none"))
	})

	t.Run("nil values count as absent", func(t *testing.T) {
		p := NewPayload(map[string]any{"data": map[string]any{"id": nil, "messageId": "m1"}})
		assert.Equal(t, "m1", p.MessageID())
	})

	t.Run("nested instance name", func(t *testing.T) {
		p := NewPayload(map[string]any{"instance": map[string]any{"instanceName": "ops"}})
		assert.Equal(t, "ops", p.Instance())
	})

	t.Run("nil raw is empty", func(t *testing.T) {
		p := NewPayload(nil)
		assert.Empty(t, p.Event())
		assert.Equal(t, EventUnknown, p.WebhookEvent())
	})
}

func TestPayloadQRCode(t *testing.T) {
	p := NewPayload(map[string]any{
		"data": map[string]any{
			"qrcode": map[string]any{"base64": "data:image/png;base64,xyz", "pairingCode": "WZYEH1YY"},
		},
	})
	assert.Equal(t, "data:image/png;base64,xyz", p.QRCode())
	assert.Equal(t, "WZYEH1YY", p.PairingCode())
	assert.Equal(t, 1, p.QRAttempt())

	p = NewPayload(map[string]any{"data": map[string]any{"code": "2@abc", "count": float64(3)}})
	assert.Equal(t, "2@abc", p.QRCode())
	assert.Equal(t, 3, p.QRAttempt())
}

func TestDeliveryStatuses(t *testing.T) {
	p := NewPayload(map[string]any{
		"data": map[string]any{
			"status": float64(3),
			"update": map[string]any{"status": "READ"},
		},
	})
	assert.Equal(t, []any{float64(3), "READ"}, p.DeliveryStatuses())
}

func TestParseWebhookEvent(t *testing.T) {
	cases := map[string]WebhookEvent{
		"MESSAGES_UPSERT":           EventMessagesUpsert,
		"messages.upsert":           EventMessagesUpsert,
		"messages-upsert":           EventMessagesUpsert,
		"connection.update":         EventConnectionUpdate,
		"qrcode.updated":            EventQRCodeUpdated,
		"group-participants.update": EventGroupParticipantsUpdate,
		"send.message":              EventSendMessage,
		"nope":                      EventUnknown,
		"":                          EventUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, ParseWebhookEvent(name), name)
	}

	assert.Equal(t, "MESSAGES_UPDATE", EventMessagesUpdate.String())
	assert.Equal(t, "UNKNOWN", WebhookEvent(999).String())
	assert.Equal(t, CategoryMessage, EventSendMessage.Category())
	assert.Equal(t, CategoryConnection, EventQRCodeUpdated.Category())
	assert.Equal(t, CategoryUnknown, EventUnknown.Category())
}

func TestClassifyContent(t *testing.T) {
	assert.Equal(t, ContentImage, ClassifyContent(map[string]any{"imageMessage": map[string]any{}}, ""))
	assert.Equal(t, ContentText, ClassifyContent(map[string]any{
		"extendedTextMessage": map[string]any{},
		"imageMessage":        map[string]any{},
	}, ""))
	assert.Equal(t, ContentReaction, ClassifyContent(nil, "reactionMessage"))
	assert.Equal(t, ContentUnknown, ClassifyContent(map[string]any{"protocolMessage": map[string]any{}}, ""))
}

func TestParseConnectionStatus(t *testing.T) {
	cases := map[string]ConnectionStatus{
		"open":         StatusConnected,
		"OPEN":         StatusConnected,
		"connected":    StatusConnected,
		"connecting":   StatusConnecting,
		"close":        StatusDisconnected,
		" close ":      StatusDisconnected,
		"disconnected": StatusDisconnected,
		"qrcode":       StatusAwaitingQR,
		"banana":       StatusUnknown,
		"":             StatusUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseConnectionStatus(in), "state %q", in)
	}
	assert.True(t, StatusConnected.IsConnected())
	assert.False(t, StatusConnecting.IsConnected())
}
