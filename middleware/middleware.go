// Package middleware provides composable middleware for event handler
// invocation. Middleware wraps a single handler call synchronously and can
// modify it (recover from panics, inject tenant scope, log, trace, etc.).
package middleware

import (
	"context"

	"github.com/xraph/eventbus/event"
)

// Handler is the terminal function that runs one event handler.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the event being delivered, the delivery
// metadata of this attempt, and the next handler to call. Middleware MUST
// call next to continue the chain (unless short-circuiting on error).
// The metadata is a read-only view; only the dispatcher mutates it.
type Middleware func(ctx context.Context, evt *event.Event, meta *event.Metadata, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(recover, logging, scope) executes as:
//
//	recover → logging → scope → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, evt *event.Event, meta *event.Metadata, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, evt, meta, prev)
			}
		}
		return h(ctx)
	}
}

// ── helpers ──────────────────────────────────────────

func deliveryID(meta *event.Metadata) string {
	if meta == nil {
		return ""
	}
	return meta.ID.String()
}

func retryCount(meta *event.Metadata) int {
	if meta == nil {
		return 0
	}
	return meta.RetryCount
}

func origin(meta *event.Metadata) string {
	if meta == nil {
		return ""
	}
	return meta.Origin
}
