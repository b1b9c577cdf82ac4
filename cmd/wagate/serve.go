package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Abraxas-365/wagate/appx"
	"github.com/Abraxas-365/wagate/logx"
	"github.com/Abraxas-365/wagate/msgx"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr, engine string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive gateway webhooks and expose metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := flags.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			if err := app.Metrics.Register(prometheus.DefaultRegisterer); err != nil {
				return err
			}
			receiver, err := app.Receiver()
			if err != nil {
				return err
			}

			if addr == "" {
				addr = app.Config.Get("webhook.addr").AsStringDefault(":8088")
			}
			if engine == "" {
				engine = app.Config.Get("webhook.engine").AsStringDefault("mux")
			}

			go func() {
				if err := app.StartStream(ctx, nil); err != nil {
					app.Logger.Log(logx.ErrorLevel, "Event stream stopped", logx.Fields{"error": err})
				}
			}()

			app.Logger.Log(logx.InfoLevel, "Webhook receiver listening", logx.Fields{
				"addr":   addr,
				"engine": engine,
				"path":   app.Config.Get("webhook.path").AsString(),
			})

			if engine == "fiber" {
				return serveFiber(ctx, app, receiver, addr)
			}
			return serveMux(ctx, app, receiver, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default webhook.addr)")
	cmd.Flags().StringVar(&engine, "engine", "", "http engine: mux or fiber (default webhook.engine)")
	return cmd
}

func newRouter(app *appx.App, receiver *msgx.Receiver) *mux.Router {
	r := mux.NewRouter()
	r.Handle(app.Config.Get("metrics.path").AsStringDefault("/metrics"), promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.PathPrefix(app.Config.Get("webhook.path").AsStringDefault(msgx.DefaultBasePath)).Handler(receiver)
	return r
}

func serveMux(ctx context.Context, app *appx.App, receiver *msgx.Receiver, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           newRouter(app, receiver),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		app.Logger.Log(logx.InfoLevel, "Shutdown signal received", nil)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newFiberApp(app *appx.App, receiver *msgx.Receiver) *fiber.App {
	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             app.Config.Get("webhook.max_body_bytes").AsIntDefault(msgx.DefaultMaxBodyBytes) + 1,
	})
	f.Get(app.Config.Get("metrics.path").AsStringDefault("/metrics"), adaptor.HTTPHandler(promhttp.Handler()))
	f.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	receiver.RegisterWithFiber(f, app.Config.Get("webhook.path").AsStringDefault(msgx.DefaultBasePath))
	return f
}

func serveFiber(ctx context.Context, app *appx.App, receiver *msgx.Receiver, addr string) error {
	f := newFiberApp(app, receiver)

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		app.Logger.Log(logx.InfoLevel, "Shutdown signal received", nil)
		return f.ShutdownWithTimeout(15 * time.Second)
	case err := <-errCh:
		return err
	}
}
