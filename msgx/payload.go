package msgx

import (
	"fmt"
	"strconv"
	"strings"
)

// Payload wraps one decoded webhook body. Gateways nest event fields under
// "data"; lookups check data first and then the top level. When data is an
// array its first object is used.
type Payload struct {
	raw  map[string]any
	data map[string]any
}

// NewPayload wraps raw. A nil map is treated as empty.
func NewPayload(raw map[string]any) *Payload {
	if raw == nil {
		raw = map[string]any{}
	}
	p := &Payload{raw: raw}

	switch d := raw["data"].(type) {
	case map[string]any:
		p.data = d
	case []any:
		if len(d) > 0 {
			p.data, _ = d[0].(map[string]any)
		}
	}
	return p
}

// Raw returns the whole body
func (p *Payload) Raw() map[string]any { return p.raw }

// Data returns the data object, or nil
func (p *Payload) Data() map[string]any { return p.data }

// Get returns the value at a dotted path, checking data first. Numeric
// segments index arrays. Absent paths return def.
func (p *Payload) Get(path string, def any) any {
	if p.data != nil {
		if v, ok := lookup(p.data, path); ok {
			return v
		}
	}
	if v, ok := lookup(p.raw, path); ok {
		return v
	}
	return def
}

// GetString returns the value at path as a string
func (p *Payload) GetString(path, def string) string {
	return asString(p.Get(path, nil), def)
}

// GetMap returns the object at path, or nil
func (p *Payload) GetMap(path string) map[string]any {
	m, _ := p.Get(path, nil).(map[string]any)
	return m
}

// firstString returns the first path holding a non-empty string
func (p *Payload) firstString(paths ...string) string {
	for _, path := range paths {
		if s := p.GetString(path, ""); s != "" {
			return s
		}
	}
	return ""
}

func lookup(root map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var cur any = root
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

func asString(v any, def string) string {
	switch t := v.(type) {
	case nil:
		return def
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool, int, int64:
		return fmt.Sprint(t)
	default:
		return def
	}
}

// ========== Extractors ==========

// Event returns the raw event name
func (p *Payload) Event() string {
	return p.firstString("event", "type")
}

// WebhookEvent classifies the event name
func (p *Payload) WebhookEvent() WebhookEvent {
	return ParseWebhookEvent(p.Event())
}

// Instance returns the instance the event belongs to
func (p *Payload) Instance() string {
	if s, ok := p.raw["instance"].(string); ok && s != "" {
		return s
	}
	return p.firstString("instance.instanceName", "instanceName", "instance")
}

// MessageID tries key.id, keyId, messageId and id
func (p *Payload) MessageID() string {
	return p.firstString("key.id", "keyId", "messageId", "id")
}

// RemoteJID tries key.remoteJid and remoteJid
func (p *Payload) RemoteJID() string {
	return p.firstString("key.remoteJid", "remoteJid")
}

// FromMe reports whether the message was sent by the instance itself
func (p *Payload) FromMe() bool {
	if v, ok := p.Get("key.fromMe", nil).(bool); ok {
		return v
	}
	v, _ := p.Get("fromMe", false).(bool)
	return v
}

// IsGroup reports whether the remote JID is a group
func (p *Payload) IsGroup() bool {
	return strings.HasSuffix(p.RemoteJID(), "@g.us")
}

// GroupID returns the remote JID for group messages
func (p *Payload) GroupID() string {
	if p.IsGroup() {
		return p.RemoteJID()
	}
	return ""
}

// Message returns the message content object
func (p *Payload) Message() map[string]any {
	return p.GetMap("message")
}

// MessageType returns the gateway's own message type label
func (p *Payload) MessageType() string {
	return p.GetString("messageType", "")
}

// ContentType classifies the message content
func (p *Payload) ContentType() ContentType {
	return ClassifyContent(p.Message(), p.MessageType())
}

// Sender describes who sent a message
type Sender struct {
	JID      string `json:"jid"`
	PushName string `json:"push_name,omitempty"`
	FromMe   bool   `json:"from_me"`
}

// Sender returns the participant for group messages, else the remote JID
func (p *Payload) Sender() Sender {
	return Sender{
		JID:      p.firstString("key.participant", "participant", "key.remoteJid", "remoteJid", "sender"),
		PushName: p.GetString("pushName", ""),
		FromMe:   p.FromMe(),
	}
}

// ConnectionState returns the raw connection state
func (p *Payload) ConnectionState() string {
	return p.firstString("state", "connection", "status")
}

// StatusReason returns the disconnect reason code when present
func (p *Payload) StatusReason() int {
	n, _ := toInt(p.Get("statusReason", nil))
	return n
}

// QRCode tries qrcode.base64, qrcode.code, base64 and code
func (p *Payload) QRCode() string {
	return p.firstString("qrcode.base64", "qrcode.code", "base64", "code")
}

// PairingCode returns the pairing code when the gateway sent one
func (p *Payload) PairingCode() string {
	return p.firstString("qrcode.pairingCode", "pairingCode")
}

// QRAttempt returns the 1-based QR attempt counter, defaulting to 1
func (p *Payload) QRAttempt() int {
	for _, path := range []string{"qrcode.attempt", "attempt", "count"} {
		if n, ok := toInt(p.Get(path, nil)); ok && n > 0 {
			return n
		}
	}
	return 1
}

// DeliveryStatuses returns every status value the update carries, from the
// flat status field and the nested update.status
func (p *Payload) DeliveryStatuses() []any {
	var out []any
	for _, path := range []string{"status", "update.status"} {
		if v := p.Get(path, nil); v != nil {
			out = append(out, v)
		}
	}
	return out
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}
