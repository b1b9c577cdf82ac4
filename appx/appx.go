// Package appx wires the gateway client, the limiter store, event publishers
// and the webhook processor from configuration. Both binaries start here.
package appx

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Abraxas-365/wagate/auth"
	"github.com/Abraxas-365/wagate/clients/evolution"
	"github.com/Abraxas-365/wagate/configx"
	"github.com/Abraxas-365/wagate/eventx"
	"github.com/Abraxas-365/wagate/fsx"
	"github.com/Abraxas-365/wagate/limitx"
	"github.com/Abraxas-365/wagate/logx"
	"github.com/Abraxas-365/wagate/msgx"
	"github.com/Abraxas-365/wagate/storex"
)

// Defaults are the lowest priority configuration layer
var Defaults = map[string]any{
	"store": map[string]any{
		"driver":   "memory",
		"table":    "wagate_buckets",
		"database": "wagate",
	},
	"webhook": map[string]any{
		"addr":           ":8088",
		"path":           msgx.DefaultBasePath,
		"engine":         "mux",
		"max_body_bytes": msgx.DefaultMaxBodyBytes,
		"token_issuer":   "wagate",
	},
	"events": map[string]any{
		"stream": true,
		"topic":  "wagate.events",
	},
	"metrics": map[string]any{
		"path": "/metrics",
	},
	"media": map[string]any{
		"max_bytes": 16 << 20,
	},
}

// LoadConfig layers defaults, WAGATE_ environment variables, an optional
// dotenv file and an optional YAML or JSON file
func LoadConfig(file, dotenv string) (configx.Config, error) {
	b := configx.NewBuilder().WithDefaults(Defaults).FromEnv("WAGATE")
	if dotenv != "" {
		b = b.FromDotEnv(dotenv)
	}
	if file != "" {
		b = b.FromFile(file)
	}
	return b.Build()
}

// App holds the wired runtime
type App struct {
	Config    configx.Config
	Logger    *logx.Logger
	Registry  *evolution.ConnectionRegistry
	Client    *evolution.Client
	Limiter   *limitx.Limiter
	Metrics   *evolution.Metrics
	Bus       *eventx.MemoryBus
	Events    *eventx.Fanout
	Processor *msgx.Processor

	stream   *gochannel.GoChannel
	noStream bool
	closers  []func(context.Context) error
}

// Option configures New
type Option func(*App)

// WithLogger sets the logger shared by every component
func WithLogger(l *logx.Logger) Option {
	return func(a *App) { a.Logger = l }
}

// WithoutStream skips the in-process event stream whatever events.stream says
func WithoutStream() Option {
	return func(a *App) { a.noStream = true }
}

// New builds the runtime. Close releases what it opened, also on failure.
func New(ctx context.Context, cfg configx.Config, opts ...Option) (app *App, err error) {
	app = &App{
		Config:  cfg,
		Logger:  logx.GetLogger(),
		Metrics: evolution.NewMetrics(),
	}
	for _, opt := range opts {
		opt(app)
	}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	if app.Registry, err = evolution.LoadRegistry(cfg); err != nil {
		return app, err
	}

	store, err := app.openStore(ctx)
	if err != nil {
		return app, err
	}
	app.Limiter = limitx.New(store)

	app.Client, err = evolution.NewClient(app.Registry,
		evolution.WithLimiter(app.Limiter),
		evolution.WithLogger(app.Logger),
		evolution.WithMetrics(app.Metrics),
	)
	if err != nil {
		return app, err
	}

	if err = app.openEvents(ctx); err != nil {
		return app, err
	}

	app.Processor = msgx.NewProcessor(app.Events,
		msgx.WithProcessorLogger(app.Logger),
		msgx.WithEventSource("wagate.webhook"),
	)
	return app, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func (a *App) openStore(ctx context.Context) (storex.Store[limitx.Bucket], error) {
	driver := strings.ToLower(a.Config.Get("store.driver").AsStringDefault("memory"))
	dsn := a.Config.Get("store.dsn").AsString()
	table := a.Config.Get("store.table").AsStringDefault("wagate_buckets")

	log := a.Logger.With(logx.Fields{"driver": driver})

	switch driver {
	case "memory", "":
		return storex.NewMemoryStore[limitx.Bucket](), nil

	case "sqlite", "postgres":
		if dsn == "" {
			return nil, appErrors.New(ErrMissingSetting).WithDetail("key", "store.dsn")
		}
		db, err := storex.OpenSQL(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return db.Close() })

		store, err := storex.NewSQLStore[limitx.Bucket](db, table)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Log(logx.InfoLevel, "Rate limit buckets stored in SQL", logx.Fields{"table": table})
		return store, nil

	case "mongo", "mongodb":
		if dsn == "" {
			return nil, appErrors.New(ErrMissingSetting).WithDetail("key", "store.dsn")
		}
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(dsn))
		if err != nil {
			return nil, appErrors.New(ErrStartup).WithDetail("driver", driver).WithCause(err)
		}
		a.onClose(client.Disconnect)

		database := a.Config.Get("store.database").AsStringDefault("wagate")
		log.Log(logx.InfoLevel, "Rate limit buckets stored in MongoDB", logx.Fields{
			"database":   database,
			"collection": table,
		})
		return storex.NewMongoStore[limitx.Bucket](client.Database(database).Collection(table)), nil
	}

	return nil, appErrors.New(ErrUnknownStoreDriver).WithDetail("driver", driver)
}

func (a *App) openEvents(ctx context.Context) error {
	a.Bus = eventx.NewMemoryBus()
	a.Events = eventx.NewFanout()

	if err := a.Events.Register("local", a.Bus); err != nil {
		return err
	}

	if !a.noStream && a.Config.Get("events.stream").AsBoolDefault(true) {
		a.stream = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NopLogger{})
		a.onClose(func(context.Context) error { return a.stream.Close() })

		topic := a.Config.Get("events.topic").AsStringDefault("wagate.events")
		if err := a.Events.Register("stream", eventx.NewWatermillPublisher(a.stream, topic)); err != nil {
			return err
		}
	}

	if queueURL := a.Config.Get("events.sqs_queue_url").AsString(); queueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return appErrors.New(ErrStartup).WithDetail("component", "sqs").WithCause(err)
		}
		if err := a.Events.Register("sqs", eventx.NewSQSPublisher(sqs.NewFromConfig(awsCfg), queueURL)); err != nil {
			return err
		}
		a.Logger.Log(logx.InfoLevel, "Forwarding events to SQS", logx.Fields{"queue_url": queueURL})
	}
	return nil
}

// StartStream consumes the event stream until ctx is done. A nil handler
// logs every event.
func (a *App) StartStream(ctx context.Context, handler eventx.Handler) error {
	if a.stream == nil {
		return nil
	}
	if handler == nil {
		handler = a.logEvent
	}
	topic := a.Config.Get("events.topic").AsStringDefault("wagate.events")
	return eventx.ConsumeWatermill(ctx, a.stream, topic, handler)
}

func (a *App) logEvent(_ context.Context, e eventx.Event) error {
	a.Logger.Log(logx.InfoLevel, "Event", logx.Fields{
		"event_id":   e.ID(),
		"event_type": e.Type(),
		"instance":   eventx.InstanceOf(e),
	})
	return nil
}

// TokenVerifier returns the webhook token verifier, or nil when no
// webhook.jwt_secret is configured
func (a *App) TokenVerifier() (*auth.TokenVerifier, error) {
	secret := a.Config.Get("webhook.jwt_secret").AsString()
	if secret == "" {
		return nil, nil
	}
	opts := []auth.Option{auth.WithIssuer(a.Config.Get("webhook.token_issuer").AsStringDefault("wagate"))}
	if aud := a.Config.Get("webhook.token_audience").AsString(); aud != "" {
		opts = append(opts, auth.WithAudience(aud))
	}
	return auth.NewTokenVerifier(secret, opts...)
}

// Receiver builds the webhook receiver from the webhook section
func (a *App) Receiver() (*msgx.Receiver, error) {
	verifier, err := a.TokenVerifier()
	if err != nil {
		return nil, err
	}

	opts := []msgx.ReceiverOption{
		msgx.WithSecret(a.Config.Get("webhook.secret").AsString()),
		msgx.WithBasePath(a.Config.Get("webhook.path").AsStringDefault(msgx.DefaultBasePath)),
		msgx.WithMaxBodyBytes(int64(a.Config.Get("webhook.max_body_bytes").AsIntDefault(msgx.DefaultMaxBodyBytes))),
		msgx.WithReceiverLogger(a.Logger),
	}
	if verifier != nil {
		opts = append(opts, msgx.WithTokenVerifier(verifier))
	}
	return msgx.NewReceiver(a.Processor, opts...), nil
}

// LoadMedia reads a file for upload from a local path or an s3:// URI,
// within media.max_bytes
func (a *App) LoadMedia(ctx context.Context, location string) (*fsx.Media, error) {
	var client fsx.S3API
	if strings.HasPrefix(location, "s3://") {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, appErrors.New(ErrStartup).WithDetail("component", "s3").WithCause(err)
		}
		client = s3.NewFromConfig(awsCfg)
	}

	fsys, p, err := fsx.Open(location, client)
	if err != nil {
		return nil, err
	}
	return fsx.Load(ctx, fsys, p, int64(a.Config.Get("media.max_bytes").AsIntDefault(16<<20)))
}

// Close releases stores and streams in reverse order of opening
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
