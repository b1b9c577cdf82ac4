package msgx

// Domain event types published by the Processor
const (
	EventTypeWebhookReceived       = "webhook.received"
	EventTypeMessageReceived       = "message.received"
	EventTypeMessageDelivered      = "message.delivered"
	EventTypeMessageRead           = "message.read"
	EventTypeMessageSent           = "message.sent"
	EventTypeConnectionUpdated     = "connection.updated"
	EventTypeInstanceStatusChanged = "instance.status_changed"
	EventTypeQRCodeReceived        = "qrcode.received"
)

// WebhookReceived is published for every payload before any other handling
type WebhookReceived struct {
	Event    string         `json:"event"`
	Instance string         `json:"instance"`
	Payload  map[string]any `json:"payload"`
}

// MessageReceived is an inbound message
type MessageReceived struct {
	Instance    string         `json:"instance"`
	MessageID   string         `json:"message_id"`
	RemoteJID   string         `json:"remote_jid"`
	Sender      Sender         `json:"sender"`
	ContentType ContentType    `json:"content_type"`
	IsGroup     bool           `json:"is_group"`
	GroupID     string         `json:"group_id,omitempty"`
	Message     map[string]any `json:"message,omitempty"`
}

// MessageStatusChanged is published as message.delivered or message.read
type MessageStatusChanged struct {
	Instance  string `json:"instance"`
	MessageID string `json:"message_id"`
	RemoteJID string `json:"remote_jid"`
	FromMe    bool   `json:"from_me"`
	Status    any    `json:"status"`
}

// MessageSent is an outbound message reported back by the gateway
type MessageSent struct {
	Instance    string         `json:"instance"`
	MessageID   string         `json:"message_id"`
	RemoteJID   string         `json:"remote_jid"`
	ContentType ContentType    `json:"content_type"`
	Message     map[string]any `json:"message,omitempty"`
	Response    map[string]any `json:"response,omitempty"`
}

// ConnectionUpdated carries the raw connection state
type ConnectionUpdated struct {
	Instance     string           `json:"instance"`
	State        string           `json:"state"`
	Status       ConnectionStatus `json:"status"`
	StatusReason int              `json:"status_reason,omitempty"`
}

// InstanceStatusChanged is the lifecycle view of a connection update.
// Previous is nil because the processor keeps no state between payloads.
type InstanceStatusChanged struct {
	Instance string            `json:"instance"`
	Previous *ConnectionStatus `json:"previous"`
	Current  ConnectionStatus  `json:"current"`
}

// QRCodeReceived carries a QR code to scan
type QRCodeReceived struct {
	Instance    string `json:"instance"`
	QRCode      string `json:"qrcode"`
	PairingCode string `json:"pairing_code,omitempty"`
	Attempt     int    `json:"attempt"`
}
