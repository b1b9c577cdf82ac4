package msgx

import "strings"

// ========== Webhook Events ==========

// WebhookEvent is the closed set of events the gateway delivers
type WebhookEvent int

const (
	EventUnknown WebhookEvent = iota
	EventApplicationStartup
	EventQRCodeUpdated
	EventConnectionUpdate
	EventMessagesSet
	EventMessagesUpsert
	EventMessagesEdited
	EventMessagesUpdate
	EventMessagesDelete
	EventSendMessage
	EventContactsSet
	EventContactsUpsert
	EventContactsUpdate
	EventPresenceUpdate
	EventChatsSet
	EventChatsUpsert
	EventChatsUpdate
	EventChatsDelete
	EventGroupsUpsert
	EventGroupUpdate
	EventGroupParticipantsUpdate
	EventLabelsEdit
	EventLabelsAssociation
	EventCall
	EventTypebotStart
	EventTypebotChangeStatus
	EventRemoveInstance
	EventLogoutInstance
)

var eventNames = map[WebhookEvent]string{
	EventUnknown:                 "UNKNOWN",
	EventApplicationStartup:      "APPLICATION_STARTUP",
	EventQRCodeUpdated:           "QRCODE_UPDATED",
	EventConnectionUpdate:        "CONNECTION_UPDATE",
	EventMessagesSet:             "MESSAGES_SET",
	EventMessagesUpsert:          "MESSAGES_UPSERT",
	EventMessagesEdited:          "MESSAGES_EDITED",
	EventMessagesUpdate:          "MESSAGES_UPDATE",
	EventMessagesDelete:          "MESSAGES_DELETE",
	EventSendMessage:             "SEND_MESSAGE",
	EventContactsSet:             "CONTACTS_SET",
	EventContactsUpsert:          "CONTACTS_UPSERT",
	EventContactsUpdate:          "CONTACTS_UPDATE",
	EventPresenceUpdate:          "PRESENCE_UPDATE",
	EventChatsSet:                "CHATS_SET",
	EventChatsUpsert:             "CHATS_UPSERT",
	EventChatsUpdate:             "CHATS_UPDATE",
	EventChatsDelete:             "CHATS_DELETE",
	EventGroupsUpsert:            "GROUPS_UPSERT",
	EventGroupUpdate:             "GROUP_UPDATE",
	EventGroupParticipantsUpdate: "GROUP_PARTICIPANTS_UPDATE",
	EventLabelsEdit:              "LABELS_EDIT",
	EventLabelsAssociation:       "LABELS_ASSOCIATION",
	EventCall:                    "CALL",
	EventTypebotStart:            "TYPEBOT_START",
	EventTypebotChangeStatus:     "TYPEBOT_CHANGE_STATUS",
	EventRemoveInstance:          "REMOVE_INSTANCE",
	EventLogoutInstance:          "LOGOUT_INSTANCE",
}

var eventsByName = func() map[string]WebhookEvent {
	m := make(map[string]WebhookEvent, len(eventNames))
	for e, name := range eventNames {
		m[name] = e
	}
	return m
}()

func (e WebhookEvent) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return eventNames[EventUnknown]
}

// NormalizeEventName maps "messages.upsert", "messages-upsert" and
// "MESSAGES_UPSERT" to the same name
func NormalizeEventName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name))
}

// ParseWebhookEvent classifies an event name. Unknown names are EventUnknown.
func ParseWebhookEvent(name string) WebhookEvent {
	if e, ok := eventsByName[NormalizeEventName(name)]; ok {
		return e
	}
	return EventUnknown
}

// Category groups events by what they describe
type Category string

const (
	CategoryMessage     Category = "message"
	CategoryContact     Category = "contact"
	CategoryChat        Category = "chat"
	CategoryGroup       Category = "group"
	CategoryConnection  Category = "connection"
	CategoryPresence    Category = "presence"
	CategoryLabel       Category = "label"
	CategoryCall        Category = "call"
	CategoryStartup     Category = "startup"
	CategoryIntegration Category = "integration"
	CategoryInstance    Category = "instance"
	CategoryUnknown     Category = "unknown"
)

// Category returns the group of the event
func (e WebhookEvent) Category() Category {
	switch e {
	case EventMessagesSet, EventMessagesUpsert, EventMessagesEdited, EventMessagesUpdate, EventMessagesDelete, EventSendMessage:
		return CategoryMessage
	case EventContactsSet, EventContactsUpsert, EventContactsUpdate:
		return CategoryContact
	case EventChatsSet, EventChatsUpsert, EventChatsUpdate, EventChatsDelete:
		return CategoryChat
	case EventGroupsUpsert, EventGroupUpdate, EventGroupParticipantsUpdate:
		return CategoryGroup
	case EventConnectionUpdate, EventQRCodeUpdated:
		return CategoryConnection
	case EventPresenceUpdate:
		return CategoryPresence
	case EventLabelsEdit, EventLabelsAssociation:
		return CategoryLabel
	case EventCall:
		return CategoryCall
	case EventApplicationStartup:
		return CategoryStartup
	case EventTypebotStart, EventTypebotChangeStatus:
		return CategoryIntegration
	case EventRemoveInstance, EventLogoutInstance:
		return CategoryInstance
	case EventUnknown:
		return CategoryUnknown
	}
	return CategoryUnknown
}

// ========== Content Types ==========

// ContentType classifies the content of a message
type ContentType string

const (
	ContentText        ContentType = "text"
	ContentImage       ContentType = "image"
	ContentVideo       ContentType = "video"
	ContentAudio       ContentType = "audio"
	ContentDocument    ContentType = "document"
	ContentSticker     ContentType = "sticker"
	ContentLocation    ContentType = "location"
	ContentContact     ContentType = "contact"
	ContentContactList ContentType = "contacts"
	ContentPoll        ContentType = "poll"
	ContentList        ContentType = "list"
	ContentButton      ContentType = "button"
	ContentTemplate    ContentType = "template"
	ContentReaction    ContentType = "reaction"
	ContentUnknown     ContentType = "unknown"
)

// contentFields is checked in order; the first present field wins
var contentFields = []struct {
	fields []string
	kind   ContentType
}{
	{[]string{"conversation", "extendedTextMessage"}, ContentText},
	{[]string{"imageMessage"}, ContentImage},
	{[]string{"videoMessage", "ptvMessage"}, ContentVideo},
	{[]string{"audioMessage"}, ContentAudio},
	{[]string{"documentMessage", "documentWithCaptionMessage"}, ContentDocument},
	{[]string{"stickerMessage"}, ContentSticker},
	{[]string{"locationMessage", "liveLocationMessage"}, ContentLocation},
	{[]string{"contactMessage"}, ContentContact},
	{[]string{"contactsArrayMessage"}, ContentContactList},
	{[]string{"reactionMessage"}, ContentReaction},
	{[]string{"pollCreationMessage", "pollCreationMessageV2", "pollCreationMessageV3"}, ContentPoll},
	{[]string{"listMessage", "listResponseMessage"}, ContentList},
	{[]string{"buttonsMessage", "buttonsResponseMessage"}, ContentButton},
	{[]string{"templateMessage"}, ContentTemplate},
}

// ClassifyContent derives the content type from whichever content field is
// present in message. When none is, messageType is matched against the same
// field names.
func ClassifyContent(message map[string]any, messageType string) ContentType {
	for _, entry := range contentFields {
		for _, f := range entry.fields {
			if v, ok := message[f]; ok && v != nil {
				return entry.kind
			}
		}
	}

	if messageType != "" {
		for _, entry := range contentFields {
			for _, f := range entry.fields {
				if strings.EqualFold(f, messageType) {
					return entry.kind
				}
			}
		}
	}
	return ContentUnknown
}

// ========== Connection Status ==========

// ConnectionStatus is the normalized state of an instance session
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusAwaitingQR   ConnectionStatus = "awaiting_qr"
	StatusUnknown      ConnectionStatus = "unknown"
)

// ParseConnectionStatus maps a free text state case-insensitively.
// Unrecognized states are StatusUnknown.
func ParseConnectionStatus(state string) ConnectionStatus {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "open", "connected", "online":
		return StatusConnected
	case "connecting", "opening":
		return StatusConnecting
	case "close", "closed", "disconnected", "offline", "refused":
		return StatusDisconnected
	case "qr", "qrcode", "qr_code", "awaiting_qr", "awaiting-qr", "pairing":
		return StatusAwaitingQR
	default:
		return StatusUnknown
	}
}

// IsConnected reports whether the session is open
func (s ConnectionStatus) IsConnected() bool {
	return s == StatusConnected
}
