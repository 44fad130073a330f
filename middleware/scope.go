package middleware

import (
	"context"

	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/scope"
)

// Scope returns middleware that attaches the event's tenant to the context
// so handlers can read it with scope.Tenant.
func Scope() Middleware {
	return func(ctx context.Context, evt *event.Event, _ *event.Metadata, next Handler) error {
		return next(scope.WithTenant(ctx, evt.TenantID))
	}
}
