/*
Package evolution is a client for the Evolution WhatsApp gateway API.

Connections are named profiles held by a ConnectionRegistry. Every call
resolves its connection and instance once, substitutes "{instance}" in the
endpoint, passes the local rate limiter, and runs the retry loop:

	reg, _ := evolution.NewConnectionRegistry(
		evolution.DefaultProfile("primary", "https://evo.example.com", apiKey),
	)
	reg.BindInstance("sales")

	client, _ := evolution.NewClient(reg, evolution.WithMetrics(evolution.NewMetrics()))

	resp, err := client.Messages().SendText(ctx, evolution.SendTextRequest{
		Number: "5511999999999",
		Text:   "hello",
	})

Scoped copies override the coordinates of a single call chain:

	client.On("backup").ForInstance("support").Instances().ConnectionState(ctx)

# Errors

Non-2xx responses become errx errors when the profile throws on error:

	switch {
	case evolution.IsAuthentication(err):
	case evolution.IsInstanceNotFound(err):
	case evolution.IsRateLimited(err):
		wait := evolution.RetryAfterOf(err)
	}

WithoutThrow returns the Response instead so callers can inspect it.
*/
package evolution
