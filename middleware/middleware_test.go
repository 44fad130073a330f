package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/middleware"
	"github.com/xraph/eventbus/scope"
)

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *event.Event, _ *event.Metadata, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ *event.Event, _ *event.Metadata, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	evt, meta := newTestEvent(t)
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	if err := chain(context.Background(), evt, meta, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	evt, meta := newTestEvent(t)
	called := false

	err := chain(context.Background(), evt, meta, func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	pass := func(ctx context.Context, _ *event.Event, _ *event.Metadata, next middleware.Handler) error {
		return next(ctx)
	}
	chain := middleware.Chain(pass)
	evt, meta := newTestEvent(t)
	want := errors.New("handler error")

	err := chain(context.Background(), evt, meta, func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())
	evt, meta := newTestEvent(t)

	err := mw(context.Background(), evt, meta, func(_ context.Context) error {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic in handler for user.created: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())
	evt, meta := newTestEvent(t)

	called := false
	err := mw(context.Background(), evt, meta, func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Success(t *testing.T) {
	mw := middleware.Logging(slog.Default())
	evt, meta := newTestEvent(t)

	called := false
	err := mw(context.Background(), evt, meta, func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Error(t *testing.T) {
	mw := middleware.Logging(slog.Default())
	evt, _ := newTestEvent(t)
	want := errors.New("fail")

	// Nil metadata is tolerated.
	err := mw(context.Background(), evt, nil, func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestTimeout_CancelsSlowHandler(t *testing.T) {
	mw := middleware.Timeout(20 * time.Millisecond)
	evt, meta := newTestEvent(t)

	err := mw(context.Background(), evt, meta, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestTimeout_ZeroIsPassThrough(t *testing.T) {
	mw := middleware.Timeout(0)
	evt, meta := newTestEvent(t)

	err := mw(context.Background(), evt, meta, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("expected no deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScope_InjectsTenant(t *testing.T) {
	mw := middleware.Scope()
	evt, meta := newTestEvent(t)

	err := mw(context.Background(), evt, meta, func(ctx context.Context) error {
		got, ok := scope.Tenant(ctx)
		if !ok {
			t.Fatal("expected tenant in context")
		}
		if got != "tenant_456" {
			t.Errorf("tenant = %q, want %q", got, "tenant_456")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestScope_NoOpWhenEmpty(t *testing.T) {
	mw := middleware.Scope()
	evt, meta := newTestEvent(t)
	evt.TenantID = ""

	err := mw(context.Background(), evt, meta, func(ctx context.Context) error {
		if _, ok := scope.Tenant(ctx); ok {
			t.Fatal("expected no tenant in context for unscoped event")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
