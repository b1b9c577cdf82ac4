package msgx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/wagate/auth"
	"github.com/Abraxas-365/wagate/errx"
)

const upsertBody = `{"event":"messages.upsert","instance":"sales","data":{"key":{"id":"M1","remoteJid":"5511@s.whatsapp.net"}}}`

func newTestReceiver(rec *recorder, opts ...ReceiverOption) *Receiver {
	opts = append(opts, WithReceiverLogger(quietLogger()))
	return NewReceiver(newTestProcessor(rec), opts...)
}

func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	code, _ := payload["code"].(string)
	return code
}

func TestReceiveSignature(t *testing.T) {
	const secret = "hook-secret"

	t.Run("valid signature", func(t *testing.T) {
		rec := &recorder{}
		r := newTestReceiver(rec, WithSecret(secret))
		header := http.Header{}
		header.Set(SignatureHeader, SignatureFor(secret, []byte(upsertBody)))

		require.NoError(t, r.Receive(context.Background(), []byte(upsertBody), header, ""))
		assert.Contains(t, rec.types(), EventTypeMessageReceived)
	})

	t.Run("missing signature", func(t *testing.T) {
		rec := &recorder{}
		err := newTestReceiver(rec, WithSecret(secret)).Receive(context.Background(), []byte(upsertBody), http.Header{}, "")
		assert.True(t, errx.IsCode(err, ErrInvalidSignature))
		assert.Empty(t, rec.types())
	})

	t.Run("wrong signature", func(t *testing.T) {
		header := http.Header{}
		header.Set(SignatureHeader, SignatureFor("other", []byte(upsertBody)))
		err := newTestReceiver(&recorder{}, WithSecret(secret)).Receive(context.Background(), []byte(upsertBody), header, "")
		assert.True(t, errx.IsCode(err, ErrInvalidSignature))
	})

	t.Run("no secret skips verification", func(t *testing.T) {
		require.NoError(t, newTestReceiver(&recorder{}).Receive(context.Background(), []byte(upsertBody), http.Header{}, ""))
	})
}

func TestReceiveToken(t *testing.T) {
	verifier, err := auth.NewTokenVerifier("jwt-secret")
	require.NoError(t, err)

	bearer := func(instance string) http.Header {
		token, err := verifier.Issue(instance, time.Hour)
		require.NoError(t, err)
		h := http.Header{}
		h.Set("Authorization", "Bearer "+token)
		return h
	}

	r := newTestReceiver(&recorder{}, WithTokenVerifier(verifier))

	assert.NoError(t, r.Receive(context.Background(), []byte(upsertBody), bearer("sales"), ""))

	err = r.Receive(context.Background(), []byte(upsertBody), http.Header{}, "")
	assert.True(t, errx.IsCode(err, ErrUnauthorized))

	err = r.Receive(context.Background(), []byte(upsertBody), bearer("support"), "")
	assert.True(t, errx.IsCode(err, ErrUnauthorized))
}

func TestReceiveLimitsAndPathEvent(t *testing.T) {
	t.Run("too large", func(t *testing.T) {
		err := newTestReceiver(&recorder{}, WithMaxBodyBytes(10)).Receive(context.Background(), []byte(upsertBody), http.Header{}, "")
		assert.True(t, errx.IsCode(err, ErrPayloadTooLarge))
	})

	t.Run("path event fills a missing event", func(t *testing.T) {
		rec := &recorder{}
		body := `{"instance":"sales","data":{"state":"open"}}`
		require.NoError(t, newTestReceiver(rec).Receive(context.Background(), []byte(body), http.Header{}, "connection-update"))
		assert.Contains(t, rec.types(), EventTypeConnectionUpdated)
	})

	t.Run("body event wins over path", func(t *testing.T) {
		rec := &recorder{}
		require.NoError(t, newTestReceiver(rec).Receive(context.Background(), []byte(upsertBody), http.Header{}, "connection-update"))
		assert.Contains(t, rec.types(), EventTypeMessageReceived)
		assert.NotContains(t, rec.types(), EventTypeConnectionUpdated)
	})

	t.Run("invalid json", func(t *testing.T) {
		err := newTestReceiver(&recorder{}).Receive(context.Background(), []byte(`{`), http.Header{}, "")
		assert.True(t, errx.IsCode(err, ErrInvalidPayload))
	})
}

func TestPathEvent(t *testing.T) {
	r := newTestReceiver(&recorder{}, WithBasePath("/webhook"))
	cases := map[string]string{
		"/webhook":                    "",
		"/webhook/":                   "",
		"/webhook/messages-upsert":    "messages-upsert",
		"/webhook/messages-upsert/":   "messages-upsert",
		"/webhookfoo":                 "",
		"/webhookfoo/messages-upsert": "",
		"/other/messages-upsert":      "",
	}
	for path, want := range cases {
		assert.Equal(t, want, r.pathEvent(path), "path %q", path)
	}

	root := newTestReceiver(&recorder{}, WithBasePath("/"))
	assert.Equal(t, "call", root.pathEvent("/call"))
	assert.Equal(t, "", root.pathEvent("/"))
}

func TestServeHTTP(t *testing.T) {
	rec := &recorder{}
	r := newTestReceiver(rec)

	t.Run("accepts post with event suffix", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/qrcode-updated", strings.NewReader(`{"instance":"sales","data":{"code":"2@x"}}`))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
		assert.Contains(t, rec.types(), EventTypeQRCodeReceived)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, string(ErrMethodNotAllowed), errorCode(t, w.Body))
	})

	t.Run("handler failure is a server error", func(t *testing.T) {
		failing := newTestReceiver(&recorder{})
		failing.processor.On(Wildcard, HandlerFunc(func(ctx context.Context, pl *Payload) error {
			return io.ErrUnexpectedEOF
		}))
		w := httptest.NewRecorder()
		failing.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(upsertBody)))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, string(ErrProcessingFailed), errorCode(t, w.Body))
	})
}

func TestRegisterWithFiber(t *testing.T) {
	const secret = "fiber-secret"
	rec := &recorder{}
	r := newTestReceiver(rec, WithSecret(secret))

	app := fiber.New()
	r.RegisterWithFiber(app, "/hooks/evolution")

	req := httptest.NewRequest(http.MethodPost, "/hooks/evolution/connection-update", strings.NewReader(`{"instance":"sales","data":{"state":"close"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, SignatureFor(secret, []byte(`{"instance":"sales","data":{"state":"close"}}`)))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, rec.types(), EventTypeInstanceStatusChanged)

	bad := httptest.NewRequest(http.MethodPost, "/hooks/evolution", strings.NewReader(upsertBody))
	resp, err = app.Test(bad)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(ErrInvalidSignature), errorCode(t, resp.Body))
}

func TestHandleLambda(t *testing.T) {
	rec := &recorder{}
	r := newTestReceiver(rec)

	resp, err := r.HandleLambda(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/webhook/messages-upsert",
		PathParameters:  map[string]string{"event": "messages-update"},
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"instance":"sales","data":{"keyId":"M1","remoteJid":"5511@s.whatsapp.net","status":"READ"}}`)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, rec.types(), EventTypeMessageRead)

	resp, err = r.HandleLambda(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = r.HandleLambda(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: "[]"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(ErrInvalidPayload), errorCode(t, strings.NewReader(resp.Body)))
}
