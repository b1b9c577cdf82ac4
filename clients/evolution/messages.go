package evolution

import (
	"context"
	"strconv"
)

// SendTextRequest is the body of /message/sendText
type SendTextRequest struct {
	Number      string      `json:"number"`
	Text        string      `json:"text"`
	Delay       int         `json:"delay,omitempty"`
	LinkPreview *bool       `json:"linkPreview,omitempty"`
	Quoted      *MessageKey `json:"quoted,omitempty"`
}

// SendMediaRequest sends media by URL or base64
type SendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	MimeType  string `json:"mimetype,omitempty"`
	Caption   string `json:"caption,omitempty"`
	Media     string `json:"media"`
	FileName  string `json:"fileName,omitempty"`
	Delay     int    `json:"delay,omitempty"`
}

// SendLocationRequest is the body of /message/sendLocation
type SendLocationRequest struct {
	Number    string  `json:"number"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MessageKey addresses one message
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// Messages sends messages through an instance
type Messages struct {
	c *Client
}

// Messages returns the message resource
func (c *Client) Messages() *Messages {
	return &Messages{c: c}
}

// SendText sends a text message
func (r *Messages) SendText(ctx context.Context, req SendTextRequest, opts ...CallOption) (*Response, error) {
	return r.c.Post(ctx, "/message/sendText/{instance}", req, opts...)
}

// SendMedia sends media referenced by URL or base64
func (r *Messages) SendMedia(ctx context.Context, req SendMediaRequest, opts ...CallOption) (*Response, error) {
	return r.c.Post(ctx, "/message/sendMedia/{instance}", req, opts...)
}

// UploadMedia sends a media file as multipart form data
func (r *Messages) UploadMedia(ctx context.Context, number, mediaType, caption string, file File, opts ...CallOption) (*Response, error) {
	if file.Field == "" {
		file.Field = "file"
	}
	fields := map[string]string{
		"number":    number,
		"mediatype": mediaType,
	}
	if caption != "" {
		fields["caption"] = caption
	}
	if file.Filename != "" {
		fields["fileName"] = file.Filename
	}
	return r.c.Upload(ctx, "/message/sendMedia/{instance}", fields, []File{file}, opts...)
}

// SendLocation sends a location pin
func (r *Messages) SendLocation(ctx context.Context, req SendLocationRequest, opts ...CallOption) (*Response, error) {
	return r.c.Post(ctx, "/message/sendLocation/{instance}", req, opts...)
}

// SendReaction reacts to a message. An empty reaction removes it.
func (r *Messages) SendReaction(ctx context.Context, key MessageKey, reaction string, opts ...CallOption) (*Response, error) {
	body := map[string]any{"key": key, "reaction": reaction}
	return r.c.Post(ctx, "/message/sendReaction/{instance}", body, opts...)
}

// Chats covers chat lookups
type Chats struct {
	c *Client
}

// Chats returns the chat resource
func (c *Client) Chats() *Chats {
	return &Chats{c: c}
}

// CheckNumbers reports which numbers are on WhatsApp
func (r *Chats) CheckNumbers(ctx context.Context, numbers []string, opts ...CallOption) (*Response, error) {
	return r.c.Post(ctx, "/chat/whatsappNumbers/{instance}", map[string]any{"numbers": numbers}, opts...)
}

// FindMessages lists messages of a chat
func (r *Chats) FindMessages(ctx context.Context, remoteJID string, page, size int, opts ...CallOption) (*Response, error) {
	body := map[string]any{
		"where": map[string]any{"key": map[string]any{"remoteJid": remoteJID}},
	}
	if page > 0 {
		body["page"] = page
	}
	if size > 0 {
		body["offset"] = size
	}
	return r.c.Post(ctx, "/chat/findMessages/{instance}", body, opts...)
}

// MarkAsRead marks messages as read
func (r *Chats) MarkAsRead(ctx context.Context, keys []MessageKey, opts ...CallOption) (*Response, error) {
	return r.c.Post(ctx, "/chat/markMessageAsRead/{instance}", map[string]any{"readMessages": keys}, opts...)
}

// Groups manages groups
type Groups struct {
	c *Client
}

// Groups returns the group resource
func (c *Client) Groups() *Groups {
	return &Groups{c: c}
}

// Create creates a group with the given participants
func (r *Groups) Create(ctx context.Context, subject, description string, participants []string, opts ...CallOption) (*Response, error) {
	body := map[string]any{"subject": subject, "participants": participants}
	if description != "" {
		body["description"] = description
	}
	return r.c.Post(ctx, "/group/create/{instance}", body, opts...)
}

// FetchAll lists the groups of the instance
func (r *Groups) FetchAll(ctx context.Context, withParticipants bool, opts ...CallOption) (*Response, error) {
	query := map[string]any{"getParticipants": strconv.FormatBool(withParticipants)}
	return r.c.Get(ctx, "/group/fetchAllGroups/{instance}", query, opts...)
}

// Participants lists the members of a group
func (r *Groups) Participants(ctx context.Context, groupJID string, opts ...CallOption) (*Response, error) {
	return r.c.Get(ctx, "/group/participants/{instance}", map[string]any{"groupJid": groupJID}, opts...)
}
