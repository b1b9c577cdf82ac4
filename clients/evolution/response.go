package evolution

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope of one completed HTTP exchange
type Response struct {
	StatusCode int
	Successful bool
	Message    string
	// Body is the decoded JSON object. A top level array lands in List.
	Body     map[string]any
	List     []any
	Raw      []byte
	Header   http.Header
	Duration time.Duration
}

func newResponse(status int, header http.Header, raw []byte, duration time.Duration) *Response {
	decoded := decodeBody(raw)

	r := &Response{
		StatusCode: status,
		Successful: status >= 200 && status < 300,
		Message:    extractMessage(decoded, status),
		Raw:        raw,
		Header:     header,
		Duration:   duration,
		Body:       map[string]any{},
	}
	switch v := decoded.(type) {
	case map[string]any:
		r.Body = v
	case []any:
		r.List = v
	}
	return r
}

// ResponseTimeMS is the exchange duration in milliseconds
func (r *Response) ResponseTimeMS() int64 {
	return r.Duration.Milliseconds()
}

// Get returns a top level body field
func (r *Response) Get(key string) any {
	return r.Body[key]
}

// Decode unmarshals the raw body into v
func (r *Response) Decode(v any) error {
	if len(r.Raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return ErrorRegistry.NewWithCause(ErrInvalidResponse, err).
			WithDetail(DetailStatus, r.StatusCode)
	}
	return nil
}

func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// extractMessage reads the message field of a body. Non string messages are
// JSON encoded. The gateway nests validation messages under "response".
// Failures without a message fall back to the reason phrase.
func extractMessage(body any, status int) string {
	obj, _ := body.(map[string]any)

	msg, ok := obj["message"]
	if !ok {
		if nested, isMap := obj["response"].(map[string]any); isMap {
			msg, ok = nested["message"]
		}
	}

	if ok && msg != nil {
		if s, isString := msg.(string); isString {
			return s
		}
		if b, err := json.Marshal(msg); err == nil {
			return string(b)
		}
	}

	if status < 200 || status >= 300 {
		return http.StatusText(status)
	}
	return ""
}
