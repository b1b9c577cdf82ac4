package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Abraxas-365/wagate/appx"
	"github.com/Abraxas-365/wagate/clients/evolution"
	"github.com/Abraxas-365/wagate/fsx"
	"github.com/Abraxas-365/wagate/limitx"
	"github.com/Abraxas-365/wagate/msgx"
)

// withApp runs fn against a bootstrapped runtime and closes it afterwards
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, app *appx.App) error) error {
	ctx := cmd.Context()
	app, err := flags.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())
	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state [instances...]",
		Short: "Show the connection state of one or more instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *appx.App) error {
				instances := flags.client(app).Instances()
				if len(args) == 0 {
					state, err := instances.ConnectionState(ctx)
					if err != nil {
						return err
					}
					printState(cmd.OutOrStdout(), state.Instance, state.Status)
					return nil
				}

				states, err := instances.ConnectionStates(ctx, args)
				if err != nil {
					return err
				}
				for _, s := range states {
					printState(cmd.OutOrStdout(), s.Instance, s.Status)
				}
				return nil
			})
		},
	}
}

func printState(w io.Writer, instance string, status msgx.ConnectionStatus) {
	c := color.New(color.FgYellow)
	switch status {
	case msgx.StatusConnected:
		c = color.New(color.FgGreen)
	case msgx.StatusDisconnected:
		c = color.New(color.FgRed)
	}
	fmt.Fprintf(w, "%-24s %s\n", instance, c.Sprint(status))
}

func newSendTextCmd(flags *globalFlags) *cobra.Command {
	var to, text string
	var delay int

	cmd := &cobra.Command{
		Use:   "send-text",
		Short: "Send a text message through the selected instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *appx.App) error {
				resp, err := flags.client(app).Messages().SendText(ctx, evolution.SendTextRequest{
					Number: to,
					Text:   text,
					Delay:  delay,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp.Body)
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination number")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	cmd.Flags().IntVar(&delay, "delay", 0, "typing delay in milliseconds")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newSendMediaCmd(flags *globalFlags) *cobra.Command {
	var to, file, caption string

	cmd := &cobra.Command{
		Use:   "send-media",
		Short: "Upload a local or s3:// file as a media message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *appx.App) error {
				media, err := app.LoadMedia(ctx, file)
				if err != nil {
					return err
				}
				resp, err := flags.client(app).Messages().UploadMedia(ctx, to, fsx.MediaType(media.ContentType), caption, evolution.File{
					Filename:    media.Name,
					ContentType: media.ContentType,
					Data:        media.Data,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp.Body)
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination number")
	cmd.Flags().StringVar(&file, "file", "", "local path or s3://bucket/key")
	cmd.Flags().StringVar(&caption, "caption", "", "media caption")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newInstancesCmd(flags *globalFlags) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List the instances of the selected connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *appx.App) error {
				resp, err := flags.client(app).Instances().Fetch(ctx, name)
				if err != nil {
					return err
				}
				if resp.List != nil {
					return printJSON(cmd.OutOrStdout(), resp.List)
				}
				return printJSON(cmd.OutOrStdout(), resp.Body)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "only fetch this instance")
	return cmd
}

func newLimitsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "limits",
		Short: "Show the remaining rate limit budget per operation class",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *appx.App) error {
				client := flags.client(app)
				for _, class := range []limitx.OperationClass{limitx.ClassMessages, limitx.ClassMedia, limitx.ClassDefault} {
					remaining, err := client.Remaining(ctx, class)
					if err != nil {
						return err
					}
					value := fmt.Sprint(remaining)
					if remaining < 0 {
						value = "unlimited"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", class, value)
				}
				return nil
			})
		},
	}
}

func newTokenCmd(flags *globalFlags) *cobra.Command {
	var instance string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for webhook deliveries of an instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *appx.App) error {
				verifier, err := app.TokenVerifier()
				if err != nil {
					return err
				}
				if verifier == nil {
					return fmt.Errorf("webhook.jwt_secret is not configured")
				}
				token, err := verifier.Issue(instance, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&instance, "for", "", "instance the token is bound to (empty for any)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
