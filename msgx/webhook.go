package msgx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Abraxas-365/wagate/auth"
	"github.com/Abraxas-365/wagate/errx"
	"github.com/Abraxas-365/wagate/logx"
	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v2"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the body, prefixed "sha256="
	SignatureHeader = "X-Hub-Signature-256"

	signaturePrefix = "sha256="

	DefaultBasePath     = "/webhook"
	DefaultMaxBodyBytes = 4 << 20
)

// Receiver is the HTTP edge in front of a Processor. It checks size,
// signature and bearer token before decoding and processing a body.
type Receiver struct {
	processor *Processor
	secret    []byte
	verifier  *auth.TokenVerifier
	maxBody   int64
	basePath  string
	logger    *logx.Logger
}

// ReceiverOption configures a Receiver
type ReceiverOption func(*Receiver)

// WithSecret enables HMAC signature checks
func WithSecret(secret string) ReceiverOption {
	return func(r *Receiver) {
		if secret != "" {
			r.secret = []byte(secret)
		}
	}
}

// WithTokenVerifier requires a bearer token on every delivery
func WithTokenVerifier(v *auth.TokenVerifier) ReceiverOption {
	return func(r *Receiver) { r.verifier = v }
}

// WithMaxBodyBytes caps the accepted body size
func WithMaxBodyBytes(n int64) ReceiverOption {
	return func(r *Receiver) {
		if n > 0 {
			r.maxBody = n
		}
	}
}

// WithBasePath sets the path ServeHTTP strips before reading the event suffix
func WithBasePath(path string) ReceiverOption {
	return func(r *Receiver) {
		if path != "" {
			r.basePath = "/" + strings.Trim(path, "/")
		}
	}
}

// WithReceiverLogger sets the logger
func WithReceiverLogger(l *logx.Logger) ReceiverOption {
	return func(r *Receiver) { r.logger = l }
}

// NewReceiver creates a receiver for processor
func NewReceiver(processor *Processor, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		processor: processor,
		maxBody:   DefaultMaxBodyBytes,
		basePath:  DefaultBasePath,
		logger:    logx.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Receive validates and processes one delivery. pathEvent is the event name
// from a "by events" URL suffix and only fills a body without one.
func (r *Receiver) Receive(ctx context.Context, body []byte, header http.Header, pathEvent string) error {
	if int64(len(body)) > r.maxBody {
		return Registry.New(ErrPayloadTooLarge).
			WithDetail("size", len(body)).
			WithDetail("limit", r.maxBody)
	}

	if err := r.verifySignature(body, header.Get(SignatureHeader)); err != nil {
		return err
	}

	var claims *auth.Claims
	if r.verifier != nil {
		c, err := r.verifier.VerifyHeader(header.Get("Authorization"))
		if err != nil {
			return Registry.New(ErrUnauthorized).WithCause(err)
		}
		claims = c
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		e := Registry.New(ErrInvalidPayload)
		if err != nil {
			e.WithCause(err)
		}
		return e
	}

	if pathEvent != "" {
		if _, ok := raw["event"]; !ok {
			raw["event"] = pathEvent
		}
	}

	if claims != nil && claims.Instance != "" {
		if instance := NewPayload(raw).Instance(); instance != "" && instance != claims.Instance {
			return Registry.New(ErrUnauthorized).
				WithDetail("instance", instance).
				WithDetail("token_instance", claims.Instance)
		}
	}

	return r.processor.Process(ctx, raw)
}

func (r *Receiver) verifySignature(body []byte, signature string) error {
	if r.secret == nil {
		return nil
	}
	if signature == "" {
		return Registry.New(ErrInvalidSignature).WithDetail("reason", "missing signature header")
	}

	got, err := hex.DecodeString(strings.TrimPrefix(signature, signaturePrefix))
	if err != nil {
		return Registry.New(ErrInvalidSignature).WithCause(err)
	}
	if !hmac.Equal(got, Sign(r.secret, body)) {
		return Registry.New(ErrInvalidSignature)
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of body
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureFor renders the SignatureHeader value for body
func SignatureFor(secret string, body []byte) string {
	return signaturePrefix + hex.EncodeToString(Sign([]byte(secret), body))
}

// pathEvent returns the event suffix after the base path, if any
func (r *Receiver) pathEvent(path string) string {
	base := strings.TrimSuffix(r.basePath, "/")
	rest, ok := strings.CutPrefix(path, base+"/")
	if !ok {
		return ""
	}
	return strings.Trim(rest, "/")
}

// ServeHTTP accepts POSTs on the base path and base path + "/{event}"
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		Registry.New(ErrMethodNotAllowed).ToHTTP(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, r.maxBody+1))
	if err != nil {
		Registry.New(ErrInvalidPayload).WithCause(err).ToHTTP(w)
		return
	}

	if err := r.Receive(req.Context(), body, req.Header, r.pathEvent(req.URL.Path)); err != nil {
		r.logFailure(err)
		toErrx(err).ToHTTP(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// RegisterWithFiber mounts the receiver on path and path + "/:event"
func (r *Receiver) RegisterWithFiber(router fiber.Router, path string) {
	if path == "" {
		path = r.basePath
	}
	handler := func(c *fiber.Ctx) error {
		header := make(http.Header)
		for k, values := range c.GetReqHeaders() {
			for _, v := range values {
				header.Add(k, v)
			}
		}

		if err := r.Receive(c.UserContext(), c.Body(), header, c.Params("event")); err != nil {
			r.logFailure(err)
			return toErrx(err).ToFiber(c)
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}

	router.Post(path, handler)
	router.Post(strings.TrimRight(path, "/")+"/:event", handler)
}

// HandleLambda adapts the receiver to API Gateway proxy events
func (r *Receiver) HandleLambda(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != "" && !strings.EqualFold(req.HTTPMethod, http.MethodPost) {
		return lambdaError(Registry.New(ErrMethodNotAllowed)), nil
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return lambdaError(Registry.New(ErrInvalidPayload).WithCause(err)), nil
		}
		body = decoded
	}

	header := make(http.Header)
	for k, values := range req.MultiValueHeaders {
		for _, v := range values {
			header.Add(k, v)
		}
	}
	for k, v := range req.Headers {
		header.Set(k, v)
	}

	pathEvent := req.PathParameters["event"]
	if pathEvent == "" {
		pathEvent = r.pathEvent(req.Path)
	}

	if err := r.Receive(ctx, body, header, pathEvent); err != nil {
		r.logFailure(err)
		return lambdaError(toErrx(err)), nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"status":"ok"}`,
	}, nil
}

func lambdaError(e *errx.Error) events.APIGatewayProxyResponse {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(e)
	return events.APIGatewayProxyResponse{
		StatusCode: e.Status(),
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       strings.TrimSpace(buf.String()),
	}
}

func (r *Receiver) logFailure(err error) {
	level := logx.WarnLevel
	if IsProcessingFailed(err) {
		level = logx.ErrorLevel
	}
	r.logger.Log(level, "Webhook rejected", logx.Fields{"error": err})
}

func toErrx(err error) *errx.Error {
	var e *errx.Error
	if errors.As(err, &e) {
		return e
	}
	return Registry.New(ErrProcessingFailed).WithCause(err)
}
