package evolution

import "context"

// WebhookConfig is the webhook section the gateway stores per instance
type WebhookConfig struct {
	Enabled  bool              `json:"enabled"`
	URL      string            `json:"url"`
	Headers  map[string]string `json:"headers,omitempty"`
	ByEvents bool              `json:"byEvents"`
	Base64   bool              `json:"base64"`
	Events   []string          `json:"events,omitempty"`
}

// Webhooks configures where the gateway delivers events
type Webhooks struct {
	c *Client
}

// Webhooks returns the webhook resource
func (c *Client) Webhooks() *Webhooks {
	return &Webhooks{c: c}
}

// Set replaces the webhook of the instance
func (r *Webhooks) Set(ctx context.Context, cfg WebhookConfig, opts ...CallOption) (*Response, error) {
	return r.c.Post(ctx, "/webhook/set/{instance}", map[string]any{"webhook": cfg}, opts...)
}

// Find returns the webhook of the instance
func (r *Webhooks) Find(ctx context.Context, opts ...CallOption) (*WebhookConfig, error) {
	resp, err := r.c.Get(ctx, "/webhook/find/{instance}", nil, opts...)
	if err != nil {
		return nil, err
	}
	var cfg WebhookConfig
	if err := resp.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
