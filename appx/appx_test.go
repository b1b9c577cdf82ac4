package appx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/wagate/configx"
	"github.com/Abraxas-365/wagate/errx"
	"github.com/Abraxas-365/wagate/eventx"
	"github.com/Abraxas-365/wagate/logx"
	"github.com/Abraxas-365/wagate/msgx"
)

func quietLogger() *logx.Logger {
	l := logx.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(t *testing.T, baseURL string, extra map[string]any) configx.Config {
	t.Helper()
	values := map[string]any{
		"instance": "sales",
		"connections": map[string]any{
			"main": map[string]any{"base_url": baseURL, "api_key": "key-1"},
		},
	}
	for k, v := range extra {
		values[k] = v
	}
	cfg, err := configx.NewBuilder().WithDefaults(Defaults).FromMap(values, "test").Build()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, cfg configx.Config) *App {
	t.Helper()
	app, err := New(context.Background(), cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestNewWiresClient(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "key-1", r.Header.Get("apikey"))
		assert.Equal(t, "/instance/connectionState/sales", r.URL.Path)
		_, _ = w.Write([]byte(`{"instance":{"instanceName":"sales","state":"open"}}`))
	}))
	defer srv.Close()

	app := newTestApp(t, testConfig(t, srv.URL, nil))

	assert.Equal(t, "main", app.Registry.CurrentName())
	ok, err := app.Client.Instances().IsConnected(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, []string{"local", "stream"}, app.Events.Names())
}

func TestSQLiteStore(t *testing.T) {
	cfg := testConfig(t, "https://evo.example.com", map[string]any{
		"store": map[string]any{"driver": "sqlite", "dsn": ":memory:", "table": "buckets"},
		"connections": map[string]any{
			"main": map[string]any{
				"base_url": "https://evo.example.com",
				"api_key":  "key-1",
				"rate_limit": map[string]any{
					"default": map[string]any{"max_attempts": 4, "decay": "1m"},
				},
			},
		},
	})
	app := newTestApp(t, cfg)

	remaining, err := app.Client.Remaining(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

func TestStoreConfigurationErrors(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		cfg := testConfig(t, "https://evo.example.com", map[string]any{
			"store": map[string]any{"driver": "redis"},
		})
		_, err := New(context.Background(), cfg, WithLogger(quietLogger()))
		assert.True(t, errx.IsCode(err, ErrUnknownStoreDriver))
	})

	t.Run("missing dsn", func(t *testing.T) {
		cfg := testConfig(t, "https://evo.example.com", map[string]any{
			"store": map[string]any{"driver": "postgres"},
		})
		_, err := New(context.Background(), cfg, WithLogger(quietLogger()))
		assert.True(t, errx.IsCode(err, ErrMissingSetting))
	})

	t.Run("no connections", func(t *testing.T) {
		cfg, err := configx.NewBuilder().WithDefaults(Defaults).Build()
		require.NoError(t, err)
		_, err = New(context.Background(), cfg, WithLogger(quietLogger()))
		assert.True(t, errx.IsType(err, errx.TypeConfiguration))
	})
}

func TestReceiverWiring(t *testing.T) {
	cfg := testConfig(t, "https://evo.example.com", map[string]any{
		"webhook": map[string]any{"path": "/hooks", "jwt_secret": "jwt", "secret": "hmac"},
	})
	app := newTestApp(t, cfg)

	var delivered int32
	require.NoError(t, app.Bus.Subscribe(msgx.EventTypeMessageReceived, func(ctx context.Context, e eventx.Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	}))

	receiver, err := app.Receiver()
	require.NoError(t, err)
	verifier, err := app.TokenVerifier()
	require.NoError(t, err)
	token, err := verifier.Issue("sales", time.Hour)
	require.NoError(t, err)

	body := `{"instance":"sales","data":{"key":{"id":"M1","remoteJid":"5511@s.whatsapp.net"}}}`
	req := httptest.NewRequest(http.MethodPost, "/hooks/messages-upsert", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(msgx.SignatureHeader, msgx.SignatureFor("hmac", []byte(body)))

	w := httptest.NewRecorder()
	receiver.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered))
}

func TestStreamReceivesEvents(t *testing.T) {
	app := newTestApp(t, testConfig(t, "https://evo.example.com", nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan string, 64)
	go func() {
		_ = app.StartStream(ctx, func(ctx context.Context, e eventx.Event) error {
			seen <- e.Type()
			return nil
		})
	}()

	payload := map[string]any{"event": "CALL", "instance": "sales"}
	assert.Eventually(t, func() bool {
		_ = app.Processor.Process(context.Background(), payload)
		select {
		case typ := <-seen:
			return typ == msgx.EventTypeWebhookReceived
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWithoutStream(t *testing.T) {
	app, err := New(context.Background(), testConfig(t, "https://evo.example.com", nil),
		WithLogger(quietLogger()), WithoutStream())
	require.NoError(t, err)
	defer app.Close(context.Background())

	assert.Equal(t, []string{"local"}, app.Events.Names())
	assert.NoError(t, app.StartStream(context.Background(), nil))
}
