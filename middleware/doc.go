// Package middleware provides composable middleware for event handlers.
//
// A [Middleware] wraps one handler invocation. Middleware are composed into
// a chain using [Chain] and applied to every handler the dispatcher runs.
// They are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// recover → logging → handler
//	chain := middleware.Chain(middleware.Recover(logger), middleware.Logging(logger))
//
// # Built-in Middleware
//
//   - [Recover] converts handler panics to errors
//   - [Logging] logs each invocation and its outcome
//   - [Timeout] cancels the handler context after a fixed duration
//   - [Tracing] wraps the invocation in an OpenTelemetry span
//   - [Metrics] records per-event duration and outcome counters
//   - [Scope] injects the event's tenant into the context
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, evt *event.Event, meta *event.Metadata, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
