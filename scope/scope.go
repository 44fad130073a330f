// Package scope carries the tenant an event belongs to through
// context.Context, so handlers can read it without decoding the payload.
package scope

import "context"

type tenantKey struct{}

// WithTenant attaches tenantID to ctx. An empty tenantID returns ctx
// unchanged.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// Tenant returns the tenant attached to ctx, if any.
func Tenant(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tenantKey{}).(string)
	return t, ok && t != ""
}

// Capture returns the tenant attached to ctx or the empty string.
func Capture(ctx context.Context) string {
	t, _ := Tenant(ctx)
	return t
}
