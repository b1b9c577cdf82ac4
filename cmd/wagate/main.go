package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Abraxas-365/wagate/appx"
	"github.com/Abraxas-365/wagate/clients/evolution"
	"github.com/Abraxas-365/wagate/logx"
)

type globalFlags struct {
	configFile string
	dotenv     string
	connection string
	instance   string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "wagate",
		Short:         "Evolution WhatsApp gateway client and webhook receiver",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.logLevel == "" {
				return nil
			}
			level, err := logx.ParseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			logx.SetLevel(level)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", os.Getenv("WAGATE_CONFIG"), "YAML or JSON config file")
	pf.StringVar(&flags.dotenv, "env-file", "", "dotenv file to load")
	pf.StringVar(&flags.connection, "connection", "", "connection to use instead of the default")
	pf.StringVarP(&flags.instance, "instance", "i", "", "instance to use instead of the bound one")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")

	root.AddCommand(
		newServeCmd(flags),
		newStateCmd(flags),
		newSendTextCmd(flags),
		newSendMediaCmd(flags),
		newInstancesCmd(flags),
		newLimitsCmd(flags),
		newTokenCmd(flags),
	)
	return root
}

// bootstrap loads configuration and wires the runtime
func (f *globalFlags) bootstrap(ctx context.Context) (*appx.App, error) {
	cfg, err := appx.LoadConfig(f.configFile, f.dotenv)
	if err != nil {
		return nil, err
	}
	return appx.New(ctx, cfg)
}

// client returns the gateway client scoped by the connection and instance flags
func (f *globalFlags) client(app *appx.App) *evolution.Client {
	c := app.Client
	if f.connection != "" {
		c = c.On(f.connection)
	}
	if f.instance != "" {
		c = c.ForInstance(f.instance)
	}
	return c
}
