package evolution

import (
	"context"
	"slices"

	"github.com/Abraxas-365/wagate/asyncx"
	"github.com/Abraxas-365/wagate/msgx"
)

// CreateInstanceRequest is the body of /instance/create
type CreateInstanceRequest struct {
	InstanceName string         `json:"instanceName"`
	Token        string         `json:"token,omitempty"`
	Number       string         `json:"number,omitempty"`
	QRCode       bool           `json:"qrcode"`
	Integration  string         `json:"integration,omitempty"`
	Webhook      *WebhookConfig `json:"webhook,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
}

// InstanceState is one instance's connection state
type InstanceState struct {
	Instance string
	Raw      string
	Status   msgx.ConnectionStatus
}

// Instances manages gateway instances
type Instances struct {
	c *Client
}

// Instances returns the instance resource
func (c *Client) Instances() *Instances {
	return &Instances{c: c}
}

// Create registers a new instance
func (r *Instances) Create(ctx context.Context, req CreateInstanceRequest, opts ...CallOption) (*Response, error) {
	if req.Integration == "" {
		req.Integration = "WHATSAPP-BAILEYS"
	}
	return r.c.Post(ctx, "/instance/create", req, opts...)
}

// Fetch lists instances, or one instance when name is set
func (r *Instances) Fetch(ctx context.Context, name string, opts ...CallOption) (*Response, error) {
	var query map[string]any
	if name != "" {
		query = map[string]any{"instanceName": name}
	}
	return r.c.Get(ctx, "/instance/fetchInstances", query, opts...)
}

// Connect starts a session and returns the QR code or pairing code
func (r *Instances) Connect(ctx context.Context, number string, opts ...CallOption) (*Response, error) {
	var query map[string]any
	if number != "" {
		query = map[string]any{"number": number}
	}
	return r.c.Get(ctx, "/instance/connect/{instance}", query, opts...)
}

// ConnectionState reads the state of the instance. A disconnected instance
// is a status, not an error.
func (r *Instances) ConnectionState(ctx context.Context, opts ...CallOption) (InstanceState, error) {
	resp, err := r.c.Get(ctx, "/instance/connectionState/{instance}", nil, opts...)
	if err != nil {
		return InstanceState{}, err
	}

	var body struct {
		Instance struct {
			InstanceName string `json:"instanceName"`
			State        string `json:"state"`
		} `json:"instance"`
		State string `json:"state"`
	}
	if err := resp.Decode(&body); err != nil {
		return InstanceState{}, err
	}

	raw := body.Instance.State
	if raw == "" {
		raw = body.State
	}
	return InstanceState{
		Instance: body.Instance.InstanceName,
		Raw:      raw,
		Status:   msgx.ParseConnectionStatus(raw),
	}, nil
}

// IsConnected reports whether the instance session is open
func (r *Instances) IsConnected(ctx context.Context, opts ...CallOption) (bool, error) {
	state, err := r.ConnectionState(ctx, opts...)
	if err != nil {
		if IsInstanceNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return state.Status.IsConnected(), nil
}

// ConnectionStates queries several instances concurrently, in input order
func (r *Instances) ConnectionStates(ctx context.Context, names []string, opts ...CallOption) ([]InstanceState, error) {
	return asyncx.Limit(ctx, names, 8, func(ctx context.Context, name string) (InstanceState, error) {
		state, err := r.ConnectionState(ctx, append(slices.Clip(opts), WithInstance(name))...)
		if err != nil {
			return InstanceState{}, err
		}
		if state.Instance == "" {
			state.Instance = name
		}
		return state, nil
	})
}

// Restart restarts the instance session
func (r *Instances) Restart(ctx context.Context, opts ...CallOption) (*Response, error) {
	return r.c.Post(ctx, "/instance/restart/{instance}", nil, opts...)
}

// Logout ends the WhatsApp session but keeps the instance
func (r *Instances) Logout(ctx context.Context, opts ...CallOption) (*Response, error) {
	return r.c.Delete(ctx, "/instance/logout/{instance}", nil, opts...)
}

// Delete removes the instance
func (r *Instances) Delete(ctx context.Context, opts ...CallOption) (*Response, error) {
	return r.c.Delete(ctx, "/instance/delete/{instance}", nil, opts...)
}
