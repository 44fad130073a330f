// Package eventbus provides asynchronous domain-event dispatch for the
// identity backend. Use-cases publish immutable facts (a user was created,
// a role was assigned) and Eventbus gets them to every interested handler
// without blocking the publisher, across process restarts and across all
// running instances.
//
// Eventbus is a library. Construct an engine, subscribe typed handlers at
// start-up, and publish after the originating transaction commits.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithStore(redisstore.New(client)),
//	    engine.WithChannel(redisbroadcast.New(client)),
//	)
//	event.Subscribe(eng.Registry(), func(ctx context.Context, evt *event.Event, p event.UserCreated) error {
//	    return welcome.Send(ctx, p.Email)
//	})
//	_ = eng.Start(ctx)
//
//	evt, _ := event.New(event.UserCreated{UserID: "u1", TenantID: "t1"})
//	_, _ = eng.Publish(ctx, evt)
//
// # Delivery
//
// Delivery is at-least-once. Every publish attempt gets its own delivery
// metadata record that moves Pending -> Processing -> Completed or Failed.
// Failed attempts are retried with backoff up to MaxRetries; after that the
// event lands in a bounded dead letter queue that operators can replay.
//
// The backing store and the distribution channel are best-effort: when they
// are unreachable, publishing still reaches local handlers.
//
// All entity IDs use TypeID (type-prefixed, K-sortable, UUIDv7-based).
package eventbus
