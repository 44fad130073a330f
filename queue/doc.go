// Package queue provides optional per-event-name and per-tenant delivery
// limits consulted by the worker pool before a delivery runs.
//
// # Per-Event Configuration
//
// Use [Config] to cap concurrency or rate for one event name:
//
//	queue.Config{
//	    Event:          event.UserLoggedInName,
//	    MaxConcurrency: 5,  // max 5 concurrent login deliveries
//	    RateLimit:      50, // max 50 deliveries/s
//	    RateBurst:      100,
//	}
//
// Pass configs when building the engine:
//
//	engine.New(
//	    engine.WithQueueConfig(
//	        queue.Config{Event: event.UserCreatedName, MaxConcurrency: 20},
//	    ),
//	)
//
// # Manager
//
// [Manager] enforces the limits. It uses a token-bucket rate limiter
// (golang.org/x/time/rate) and an active-count gate for concurrency.
// A delivery refused by the manager is not dropped; the pool re-queues it
// after a short interval.
//
//	m := queue.NewManager(configs...)
//	if m.Acquire(string(evt.Name), evt.TenantID) {
//	    defer m.Release(string(evt.Name), evt.TenantID)
//	    // deliver
//	}
//
// Events without a [Config] have no limits beyond the pool-wide concurrency.
package queue
