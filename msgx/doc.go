/*
Package msgx ingests webhook deliveries from an Evolution gateway.

A Payload wraps one decoded body and extracts the fields that live in
different places depending on the event. The Processor publishes domain
events to an eventx.Publisher and then runs custom handlers:

	bus := eventx.NewMemoryBus()
	p := msgx.NewProcessor(bus)

	p.OnEvent(msgx.EventMessagesUpsert, msgx.HandlerFunc(func(ctx context.Context, pl *msgx.Payload) error {
		fmt.Println(pl.Sender().PushName, pl.ContentType())
		return nil
	}))

	p.On(msgx.Wildcard, audit)

Handlers for the exact event run before wildcard handlers, each in
registration order. A handler implementing Filterer is skipped when
ShouldHandle returns false.

# Receiving

Receiver checks body size, the X-Hub-Signature-256 HMAC and an optional
bearer token before processing:

	r := msgx.NewReceiver(p, msgx.WithSecret(secret))
	http.Handle("/webhook/", r)

	r.RegisterWithFiber(app, "/webhook")

	lambda.Start(r.HandleLambda)

Deliveries to "/webhook/messages-upsert" carry the event in the path; it is
used when the body has no event field.
*/
package msgx
