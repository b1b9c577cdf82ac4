// Package eventx defines domain events and the publishers they travel through.
//
// Producers depend only on Publisher. MemoryBus delivers in-process with
// wildcard subscriptions, WatermillPublisher streams events to a watermill
// topic, SQSPublisher forwards them to a queue, and Fanout sends one event to
// all of them.
//
//	bus := eventx.NewMemoryBus()
//	_ = bus.Subscribe(eventx.Wildcard, func(ctx context.Context, e eventx.Event) error {
//		logx.Info("event %s", e.Type())
//		return nil
//	})
//
//	out := eventx.NewFanout()
//	_ = out.Register("memory", bus)
//	_ = out.Register("sqs", eventx.NewSQSPublisher(sqs.NewFromConfig(cfg), queueURL))
//
//	err := out.Publish(ctx, eventx.NewEvent("message.received", data))
package eventx
