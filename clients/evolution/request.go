package evolution

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"sort"
)

// InstancePlaceholder is replaced by the resolved instance name
const InstancePlaceholder = "{instance}"

// Request describes one logical call. Endpoint may contain {instance}.
// GET requests send Body fields as query parameters.
type Request struct {
	Method   string
	Endpoint string
	Query    map[string]any
	Body     any
}

// CallOptions are the per-call overrides of one request
type CallOptions struct {
	Headers    map[string]string
	Throw      *bool
	Instance   string
	Connection string
}

// CallOption mutates the options of a single call
type CallOption func(*CallOptions)

// WithHeaders adds headers to this call only
func WithHeaders(headers map[string]string) CallOption {
	return func(o *CallOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string, len(headers))
		}
		maps.Copy(o.Headers, headers)
	}
}

// WithHeader adds one header to this call only
func WithHeader(key, value string) CallOption {
	return WithHeaders(map[string]string{key: value})
}

// WithThrow makes non-2xx responses return an error
func WithThrow() CallOption {
	return func(o *CallOptions) {
		t := true
		o.Throw = &t
	}
}

// WithoutThrow returns non-2xx responses as unsuccessful envelopes
func WithoutThrow() CallOption {
	return func(o *CallOptions) {
		f := false
		o.Throw = &f
	}
}

// WithInstance targets an instance for this call only
func WithInstance(name string) CallOption {
	return func(o *CallOptions) { o.Instance = name }
}

// WithConnection targets a connection for this call only
func WithConnection(name string) CallOption {
	return func(o *CallOptions) { o.Connection = name }
}

// encodeQuery merges the query map and, for GET, the body fields
func encodeQuery(method string, query map[string]any, body any) string {
	values := url.Values{}
	add := func(m map[string]any) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			addQueryValue(values, k, m[k])
		}
	}

	add(query)
	if method == http.MethodGet && body != nil {
		add(bodyFields(body))
	}
	return values.Encode()
}

func addQueryValue(values url.Values, key string, v any) {
	if v == nil {
		return
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			values.Add(key, fmt.Sprint(rv.Index(i).Interface()))
		}
		return
	}
	values.Add(key, fmt.Sprint(v))
}

// bodyFields flattens a map or struct body to its top level fields
func bodyFields(body any) map[string]any {
	switch b := body.(type) {
	case map[string]any:
		return b
	case map[string]string:
		m := make(map[string]any, len(b))
		for k, v := range b {
			m[k] = v
		}
		return m
	}
	if m, ok := toGeneric(body).(map[string]any); ok {
		return m
	}
	return nil
}
