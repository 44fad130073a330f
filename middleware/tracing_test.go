package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/eventbus/event"
	mw "github.com/xraph/eventbus/middleware"
	"github.com/xraph/eventbus/scope"
)

func newRecorder() (*tracetest.SpanRecorder, trace.Tracer) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, tp.Tracer("test")
}

func newTestEvent(t *testing.T) (*event.Event, *event.Metadata) {
	t.Helper()
	evt, err := event.New(event.UserCreated{UserID: "user_123", TenantID: "tenant_456", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("event.New: %v", err)
	}
	meta := event.NewMetadata(evt.Name, "inst_test")
	meta.RetryCount = 2
	return evt, meta
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

// Each delivery attempt gets its own consumer span; retries share the
// delivery ID and differ in retry count.
func TestTracing_SpanPerAttempt(t *testing.T) {
	sr, tracer := newRecorder()
	m := mw.TracingWithTracer(tracer)

	evt, err := event.New(event.PermissionGranted{RoleID: "role_ops", Permission: "users:write", TenantID: "tenant_9"})
	if err != nil {
		t.Fatalf("event.New: %v", err)
	}
	meta := event.NewMetadata(evt.Name, "inst_origin")

	outcomes := []error{errors.New("policy store timeout"), nil}
	for i, want := range outcomes {
		meta.RetryCount = i
		if got := m(context.Background(), evt, meta, func(context.Context) error { return want }); !errors.Is(got, want) {
			t.Fatalf("attempt %d returned %v, want %v", i, got, want)
		}
	}

	spans := sr.Ended()
	if len(spans) != len(outcomes) {
		t.Fatalf("spans = %d, want %d", len(spans), len(outcomes))
	}
	for i, s := range spans {
		if s.Name() != "eventbus.handler.execute" || s.SpanKind() != trace.SpanKindConsumer {
			t.Errorf("span %d: %s/%v, want eventbus.handler.execute/consumer", i, s.Name(), s.SpanKind())
		}
		attrs := spanAttrs(s)
		checks := map[attribute.Key]string{
			"eventbus.event.id":    evt.ID.String(),
			"eventbus.event.name":  "permission.granted",
			"eventbus.delivery.id": meta.ID.String(),
			"eventbus.tenant_id":   "tenant_9",
			"eventbus.origin":      "inst_origin",
		}
		for key, want := range checks {
			if got := attrs[key].AsString(); got != want {
				t.Errorf("span %d: %s = %q, want %q", i, key, got, want)
			}
		}
		if got := attrs["eventbus.retry_count"].AsInt64(); got != int64(i) {
			t.Errorf("span %d: retry_count = %d, want %d", i, got, i)
		}
	}

	failed, succeeded := spans[0], spans[1]
	if failed.Status().Code != codes.Error || failed.Status().Description != "policy store timeout" {
		t.Errorf("failed attempt status = %+v", failed.Status())
	}
	if len(failed.Events()) == 0 || failed.Events()[0].Name != "exception" {
		t.Error("failed attempt did not record the error")
	}
	if succeeded.Status().Code != codes.Ok {
		t.Errorf("retry status = %v, want Ok", succeeded.Status().Code)
	}
}

// A handler behind Tracing and Scope sees both the span and the tenant.
func TestTracing_WithScopeReachesHandler(t *testing.T) {
	sr, tracer := newRecorder()
	chain := mw.Chain(mw.TracingWithTracer(tracer), mw.Scope())
	evt, meta := newTestEvent(t)

	var (
		spanCtx trace.SpanContext
		tenant  string
	)
	_ = chain(context.Background(), evt, meta, func(ctx context.Context) error {
		spanCtx = trace.SpanFromContext(ctx).SpanContext()
		tenant = scope.Capture(ctx)
		return nil
	})

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if !spanCtx.IsValid() || spanCtx.SpanID() != spans[0].SpanContext().SpanID() {
		t.Error("handler context does not carry the handler span")
	}
	if tenant != "tenant_456" {
		t.Errorf("tenant = %q, want tenant_456", tenant)
	}
}

func TestTracing_DefaultNoopSafe(t *testing.T) {
	m := mw.Tracing()
	evt, meta := newTestEvent(t)

	called := false
	if err := m(context.Background(), evt, meta, func(context.Context) error {
		called = true
		return nil
	}); err != nil || !called {
		t.Fatalf("called=%v err=%v, want handler run without error", called, err)
	}
}
