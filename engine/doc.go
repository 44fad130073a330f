// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	    engine.WithStore(redisstore.New(client)),
//	    engine.WithChannel(redisbroadcast.New(client)),
//	    engine.WithExtension(audithook.New(recorder)),
//	    engine.WithQueueConfig(queue.Config{
//	        Event:          event.UserLoggedInName,
//	        MaxConcurrency: 4,
//	    }),
//	)
//
// # Subscribing
//
// Handlers are registered before Start. Every handler for an event runs
// concurrently with the others; a failure in any of them fails the
// delivery attempt.
//
//	engine.Subscribe(eng, func(ctx context.Context, evt *event.Event, p event.RoleAssigned) error {
//	    return cache.InvalidatePermissions(ctx, p.UserID)
//	})
//
// # Publishing
//
//	evt, _ := event.New(event.RoleAssigned{UserID: "u1", RoleID: "r1", TenantID: "t1"})
//	meta, err := eng.Publish(ctx, evt)
//
// Publish returns once the delivery is queued. Failed attempts are retried
// with the configured backoff, then moved to the dead letter queue, which
// operators drain with RetryDeadLetterQueue.
package engine
