package event_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/event"
)

func TestBus_PublishRunsAllHandlers(t *testing.T) {
	bus := event.NewBus()

	var calls atomic.Int32
	for range 3 {
		_ = bus.Registry().Add(event.TenantCreatedName, func(context.Context, *event.Event) error {
			calls.Add(1)
			return nil
		})
	}

	evt, _ := event.New(event.TenantCreated{TenantID: "t1", Name: "Acme"})
	if err := bus.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestBus_HandlersRunConcurrently(t *testing.T) {
	bus := event.NewBus()

	release := make(chan struct{})
	var started atomic.Int32
	for range 2 {
		_ = bus.Registry().Add(event.UserLoggedInName, func(context.Context, *event.Event) error {
			started.Add(1)
			<-release
			return nil
		})
	}

	evt, _ := event.New(event.UserLoggedIn{UserID: "u1", TenantID: "t1"})
	done := make(chan struct{})
	go func() {
		_ = bus.Publish(context.Background(), evt)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for started.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for both handlers to start")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(release)
	<-done
}

func TestBus_SwallowsErrorsAndPanics(t *testing.T) {
	bus := event.NewBus()

	var ok atomic.Bool
	_ = bus.Registry().Add(event.UserDeletedName, func(context.Context, *event.Event) error {
		return errors.New("fail")
	})
	_ = bus.Registry().Add(event.UserDeletedName, func(context.Context, *event.Event) error {
		panic("kaboom")
	})
	_ = bus.Registry().Add(event.UserDeletedName, func(context.Context, *event.Event) error {
		ok.Store(true)
		return nil
	})

	evt, _ := event.New(event.UserDeleted{UserID: "u1", TenantID: "t1"})
	if err := bus.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ok.Load() {
		t.Error("healthy handler did not run")
	}
}

func TestBus_NoHandlers(t *testing.T) {
	bus := event.NewBus()
	evt, _ := event.New(event.UserDeleted{UserID: "u1"})
	if err := bus.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestBus_NilEvent(t *testing.T) {
	bus := event.NewBus()
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, eventbus.ErrNilEvent) {
		t.Fatalf("err = %v, want ErrNilEvent", err)
	}
}
