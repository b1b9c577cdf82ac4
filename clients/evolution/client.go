package evolution

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Abraxas-365/wagate/errx"
	"github.com/Abraxas-365/wagate/limitx"
	"github.com/Abraxas-365/wagate/logx"
	"github.com/Abraxas-365/wagate/storex"
	"github.com/maypok86/otter"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Abraxas-365/wagate/clients/evolution"

// Client dispatches calls to an Evolution gateway. A Client is safe for
// concurrent use; On and ForInstance return scoped copies that share the
// registry, limiter and HTTP clients.
type Client struct {
	connections *ConnectionRegistry
	limiter     *limitx.Limiter
	logger      *logx.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	transports  otter.Cache[string, *http.Client]
	factory     func(ConnectionProfile) *http.Client
	sleep       func(context.Context, time.Duration) error

	connection string
	instance   string
}

// Option configures a Client
type Option func(*Client)

// WithLimiter shares a limiter, for example one backed by a SQL store
func WithLimiter(l *limitx.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *logx.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records calls on m
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracerProvider traces calls with tp instead of the global provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// WithHTTPClientFactory replaces how per-connection HTTP clients are built
func WithHTTPClientFactory(fn func(ConnectionProfile) *http.Client) Option {
	return func(c *Client) { c.factory = fn }
}

// NewClient creates a client over a connection registry
func NewClient(connections *ConnectionRegistry, opts ...Option) (*Client, error) {
	if connections == nil {
		return nil, ErrorRegistry.NewWithMessage(ErrConfiguration, "Connection registry is required")
	}

	transports, err := otter.MustBuilder[string, *http.Client](64).
		Cost(func(_ string, _ *http.Client) uint32 { return 1 }).
		DeletionListener(func(_ string, hc *http.Client, _ otter.DeletionCause) {
			hc.CloseIdleConnections()
		}).
		Build()
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrConfiguration, err)
	}

	c := &Client{
		connections: connections,
		logger:      logx.GetLogger(),
		tracer:      otel.Tracer(tracerName),
		transports:  transports,
		factory:     defaultHTTPClient,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = limitx.New(storex.NewMemoryStore[limitx.Bucket]())
	}

	connections.OnSelect(func(previous, _ string) {
		c.transports.Delete(previous)
	})
	connections.OnReplace(func(name string) {
		c.transports.Delete(name)
	})
	return c, nil
}

func defaultHTTPClient(p ConnectionProfile) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p.HTTP.ConnectTimeout > 0 {
		transport.DialContext = (&net.Dialer{
			Timeout:   p.HTTP.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
		transport.TLSHandshakeTimeout = p.HTTP.ConnectTimeout
	}
	if !p.HTTP.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per connection
	}
	return &http.Client{Timeout: p.HTTP.Timeout, Transport: transport}
}

func (c *Client) httpClient(p ConnectionProfile) *http.Client {
	if hc, ok := c.transports.Get(p.Name); ok {
		return hc
	}
	hc := c.factory(p)
	c.transports.Set(p.Name, hc)
	return hc
}

// Connections returns the registry the client resolves against
func (c *Client) Connections() *ConnectionRegistry {
	return c.connections
}

// On returns a copy of the client bound to a connection
func (c *Client) On(connection string) *Client {
	scoped := *c
	scoped.connection = connection
	return &scoped
}

// ForInstance returns a copy of the client bound to an instance
func (c *Client) ForInstance(instance string) *Client {
	scoped := *c
	scoped.instance = instance
	return &scoped
}

// ============================================================================
// BASIC HTTP METHODS
// ============================================================================

// Get performs a GET request; query is sent as the query string
func (c *Client) Get(ctx context.Context, endpoint string, query map[string]any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Endpoint: endpoint, Query: query}, opts...)
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Endpoint: endpoint, Body: body}, opts...)
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Endpoint: endpoint, Body: body}, opts...)
}

// Patch performs a PATCH request with a JSON body
func (c *Client) Patch(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Endpoint: endpoint, Body: body}, opts...)
}

// Delete performs a DELETE request with an optional JSON body
func (c *Client) Delete(ctx context.Context, endpoint string, body any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Endpoint: endpoint, Body: body}, opts...)
}

// Do sends one logical request through the dispatch pipeline
func (c *Client) Do(ctx context.Context, req Request, opts ...CallOption) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	build := func() (payload, error) {
		if req.Body == nil || method == http.MethodGet {
			return payload{}, nil
		}
		data, err := json.Marshal(req.Body)
		if err != nil {
			return payload{}, ErrorRegistry.NewWithCause(ErrInvalidRequest, err).
				WithDetail("endpoint", req.Endpoint)
		}
		return payload{data: data, contentType: "application/json", logged: req.Body}, nil
	}

	return c.dispatch(ctx, method, req.Endpoint, encodeQuery(method, req.Query, req.Body), build, opts)
}

// Upload sends a multipart/form-data POST
func (c *Client) Upload(ctx context.Context, endpoint string, fields map[string]string, files []File, opts ...CallOption) (*Response, error) {
	build := func() (payload, error) {
		data, contentType, err := buildMultipart(fields, files)
		if err != nil {
			return payload{}, ErrorRegistry.NewWithCause(ErrInvalidRequest, err).
				WithDetail("endpoint", endpoint)
		}
		logged := map[string]any{"fields": fields, "files": fileSummary(files)}
		return payload{data: data, contentType: contentType, logged: logged}, nil
	}
	return c.dispatch(ctx, http.MethodPost, endpoint, "", build, opts)
}

// Remaining reports the rate limit budget left for an operation class on the
// current coordinates. -1 means unlimited.
func (c *Client) Remaining(ctx context.Context, class limitx.OperationClass, opts ...CallOption) (int, error) {
	call := c.callOptions(opts)
	profile, instance, err := c.connections.snapshot(call.Connection, call.Instance)
	if err != nil {
		return 0, err
	}
	if !profile.RateLimit.Enabled {
		return -1, nil
	}
	key := limitx.Key{Scope: limitx.Scope(profile.Name, instance), Class: class}
	return c.limiter.Remaining(ctx, key, profile.RateLimit.For(class))
}

// ============================================================================
// PIPELINE
// ============================================================================

type payload struct {
	data        []byte
	contentType string
	logged      any
}

func (p payload) reader() io.Reader {
	if p.data == nil {
		return nil
	}
	return bytes.NewReader(p.data)
}

func (c *Client) callOptions(opts []CallOption) CallOptions {
	call := CallOptions{Connection: c.connection, Instance: c.instance}
	for _, opt := range opts {
		opt(&call)
	}
	return call
}

func (c *Client) dispatch(ctx context.Context, method, endpoint, query string, build func() (payload, error), opts []CallOption) (*Response, error) {
	call := c.callOptions(opts)

	profile, instance, err := c.connections.snapshot(call.Connection, call.Instance)
	if err != nil {
		return nil, err
	}

	path := endpoint
	if strings.Contains(endpoint, InstancePlaceholder) {
		if instance == "" {
			return nil, ErrorRegistry.New(ErrInstanceRequired).
				WithDetail("endpoint", endpoint).
				WithDetail(DetailConnection, profile.Name)
		}
		path = strings.ReplaceAll(endpoint, InstancePlaceholder, url.PathEscape(instance))
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	target := profile.BaseURL + path
	if query != "" {
		target += "?" + query
	}
	if _, err := url.Parse(target); err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrInvalidRequest, err).WithDetail(DetailURL, target)
	}

	body, err := build()
	if err != nil {
		return nil, err
	}

	class := limitx.ClassifyEndpoint(endpoint)
	log := c.logger.With(logx.Fields{
		"request_id": ulid.Make().String(),
		"connection": profile.Name,
		"instance":   instance,
	})

	if err := c.admit(ctx, profile, instance, class, log); err != nil {
		return nil, err
	}

	throw := profile.ThrowOnError
	if call.Throw != nil {
		throw = *call.Throw
	}

	ctx, span := c.tracer.Start(ctx, "evolution "+method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
			attribute.String("evolution.connection", profile.Name),
			attribute.String("evolution.instance", instance),
			attribute.String("evolution.class", string(class)),
		),
	)
	defer span.End()

	if profile.Logging.LogRequests {
		fields := logx.Fields{"method": method, "url": target}
		if body.logged != nil {
			fields["body"] = c.redacted(profile, body.logged)
		}
		if query != "" {
			if values, err := url.ParseQuery(query); err == nil {
				fields["query"] = c.redacted(profile, queryMap(values))
			}
		}
		log.Log(logx.InfoLevel, "Evolution request", fields)
	}

	start := time.Now()
	resp, attempts, err := c.send(ctx, profile, method, target, body, call.Headers)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("evolution.attempts", attempts))

	if err != nil {
		c.metrics.observeRequest(profile.Name, string(class), method, 0, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")

		if _, ok := errx.As(err); ok {
			return nil, err
		}
		failure := ErrorRegistry.NewWithCause(ErrConnectionFailed, err).
			WithDetail(DetailInstance, instance).
			WithDetail(DetailURL, target).
			WithDetail(DetailConnection, profile.Name).
			WithDetail("attempts", attempts)
		log.Log(logx.ErrorLevel, "Evolution request failed", logx.Fields{
			"method":   method,
			"url":      target,
			"attempts": attempts,
			"error":    err,
		})
		return nil, failure
	}

	c.metrics.observeRequest(profile.Name, string(class), method, resp.StatusCode, elapsed)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if !resp.Successful {
		span.SetStatus(codes.Error, resp.Message)
	}

	if profile.Logging.LogResponses {
		level := logx.InfoLevel
		if !resp.Successful {
			level = logx.ErrorLevel
		}
		fields := logx.Fields{
			"status":      resp.StatusCode,
			"duration_ms": resp.ResponseTimeMS(),
			"attempts":    attempts,
		}
		if decoded := decodeBody(resp.Raw); decoded != nil {
			fields["body"] = c.redacted(profile, decoded)
		}
		log.Log(level, "Evolution response", fields)
	}

	if !resp.Successful && throw {
		return nil, MapStatusError(resp.StatusCode, resp.Raw, resp.Header, instance, profile.DefaultRetryAfter)
	}
	return resp, nil
}

func (c *Client) admit(ctx context.Context, profile ConnectionProfile, instance string, class limitx.OperationClass, log *logx.Logger) error {
	if !profile.RateLimit.Enabled {
		return nil
	}

	key := limitx.Key{Scope: limitx.Scope(profile.Name, instance), Class: class}
	decision, err := c.limiter.Admit(ctx, key, profile.RateLimit.For(class))
	if err != nil {
		return err
	}
	if decision.Allowed {
		return nil
	}

	c.metrics.observeRateLimited(profile.Name, string(class), string(profile.RateLimit.Policy))
	if profile.RateLimit.Policy == limitx.PolicySkip {
		log.Log(logx.WarnLevel, "Rate limit exceeded, continuing", logx.Fields{
			"class":       string(class),
			"retry_after": decision.RetryAfterSeconds(),
		})
		return nil
	}
	return rateLimitedLocally(instance, decision.RetryAfterSeconds()).
		WithDetail(DetailConnection, profile.Name).
		WithDetail("class", string(class))
}

// send runs the retry loop. It returns the last response obtained, or the
// last transport error when the final attempt got no response.
func (c *Client) send(ctx context.Context, profile ConnectionProfile, method, target string, body payload, headers map[string]string) (*Response, int, error) {
	maxAttempts := 1
	if profile.Retry.Enabled && profile.Retry.MaxAttempts > 1 {
		maxAttempts = profile.Retry.MaxAttempts
	}
	hc := c.httpClient(profile)

	var (
		lastResp *Response
		lastErr  error
		attempt  int
	)
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.observeRetry(profile.Name)
			if err := c.sleep(ctx, backoff(profile.Retry, attempt-1)); err != nil {
				attempt--
				break
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, target, body.reader())
		if err != nil {
			return nil, attempt, ErrorRegistry.NewWithCause(ErrInvalidRequest, err).WithDetail(DetailURL, target)
		}
		req.Header.Set("apikey", profile.APIKey)
		req.Header.Set("Accept", "application/json")
		if body.contentType != "" {
			req.Header.Set("Content-Type", body.contentType)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		started := time.Now()
		res, err := hc.Do(req)
		if err != nil {
			lastResp, lastErr = nil, err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		raw, err := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if err != nil {
			lastResp, lastErr = nil, err
			continue
		}

		lastResp, lastErr = newResponse(res.StatusCode, res.Header, raw, time.Since(started)), nil
		if lastResp.Successful || !profile.retryable(res.StatusCode) {
			return lastResp, attempt, nil
		}
	}

	if attempt > maxAttempts {
		attempt = maxAttempts
	}
	if lastResp != nil {
		return lastResp, attempt, nil
	}
	return nil, attempt, lastErr
}

func (c *Client) redacted(profile ConnectionProfile, v any) any {
	if !profile.Logging.RedactSensitive {
		return v
	}
	return Redact(v, profile.Logging.SensitiveFields)
}

func queryMap(values url.Values) map[string]any {
	m := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			m[k] = v[0]
			continue
		}
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		m[k] = items
	}
	return m
}
