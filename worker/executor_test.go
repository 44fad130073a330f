package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/eventbus/backoff"
	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/ext"
	"github.com/xraph/eventbus/middleware"
	"github.com/xraph/eventbus/store/memory"
	"github.com/xraph/eventbus/worker"
)

// hookRecorder counts lifecycle hooks.
type hookRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (h *hookRecorder) Name() string { return "recorder" }

func (h *hookRecorder) add(name string) {
	h.mu.Lock()
	if h.calls == nil {
		h.calls = make(map[string]int)
	}
	h.calls[name]++
	h.mu.Unlock()
}

func (h *hookRecorder) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[name]
}

func (h *hookRecorder) OnEventStarted(context.Context, *event.Event, *event.Metadata) error {
	h.add("started")
	return nil
}

func (h *hookRecorder) OnEventCompleted(context.Context, *event.Event, *event.Metadata, time.Duration) error {
	h.add("completed")
	return nil
}

func (h *hookRecorder) OnEventFailed(context.Context, *event.Event, *event.Metadata, error) error {
	h.add("failed")
	return nil
}

func (h *hookRecorder) OnEventRetrying(context.Context, *event.Event, *event.Metadata, int, time.Time) error {
	h.add("retrying")
	return nil
}

func (h *hookRecorder) OnEventDeadLettered(context.Context, *event.Event, *event.Metadata, error) error {
	h.add("dead_lettered")
	return nil
}

type executorFixture struct {
	exec  *worker.Executor
	pool  *worker.Pool
	store *memory.Store
	dlq   *dlq.Queue
	reg   *event.Registry
	hooks *hookRecorder
}

func setupExecutor(t *testing.T, maxRetries int) *executorFixture {
	t.Helper()
	logger := slog.Default()
	s := memory.New()
	reg := event.NewRegistry()
	hooks := &hookRecorder{}
	extensions := ext.NewRegistry(logger)
	extensions.Register(hooks)
	q := dlq.NewQueue(10, s, logger)
	pool := startPool(t, worker.WithConcurrency(2))

	exec := worker.NewExecutor(reg, s, q, pool, logger,
		worker.WithMaxRetries(maxRetries),
		worker.WithBackoff(backoff.NewLinear(10*time.Millisecond, 0)),
		worker.WithExtensions(extensions),
		worker.WithMiddleware(middleware.Recover(logger)),
	)
	return &executorFixture{exec: exec, pool: pool, store: s, dlq: q, reg: reg, hooks: hooks}
}

func (f *executorFixture) publish(t *testing.T, userID string) (*event.Event, *event.Metadata) {
	t.Helper()
	evt, err := event.New(event.UserCreated{UserID: userID, TenantID: "t1"})
	if err != nil {
		t.Fatalf("event.New: %v", err)
	}
	meta := event.NewMetadata(evt.Name, "inst_test")
	if err := f.store.SaveEvent(context.Background(), evt, meta); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}
	return evt, meta
}

func (f *executorFixture) stored(t *testing.T, meta *event.Metadata) *event.Metadata {
	t.Helper()
	env, err := f.store.GetEvent(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	return env.Metadata
}

func TestExecutor_Success(t *testing.T) {
	f := setupExecutor(t, 3)
	var got atomic.Value
	_ = event.Subscribe(f.reg, func(_ context.Context, _ *event.Event, p event.UserCreated) error {
		got.Store(p.UserID)
		return nil
	})

	evt, meta := f.publish(t, "u1")
	f.exec.Execute(context.Background(), evt, meta)

	if got.Load() != "u1" {
		t.Fatalf("handler saw %v, want u1", got.Load())
	}
	st := f.stored(t, meta)
	if st.Status != event.StatusCompleted {
		t.Fatalf("stored status = %s, want completed", st.Status)
	}
	if st.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}
	if f.hooks.count("started") != 1 || f.hooks.count("completed") != 1 {
		t.Fatalf("unexpected hooks: %+v", f.hooks.calls)
	}
	if f.exec.InFlight() != 0 {
		t.Fatalf("expected guard to be released, in flight %d", f.exec.InFlight())
	}
}

func TestExecutor_NoHandlersLeavesPending(t *testing.T) {
	f := setupExecutor(t, 3)
	evt, meta := f.publish(t, "u1")

	f.exec.Execute(context.Background(), evt, meta)

	if st := f.stored(t, meta); st.Status != event.StatusPending {
		t.Fatalf("stored status = %s, want pending", st.Status)
	}
	if f.hooks.count("started") != 0 {
		t.Fatal("no lifecycle hooks expected without handlers")
	}
}

func TestExecutor_RetriesThenDeadLetters(t *testing.T) {
	f := setupExecutor(t, 2)
	var attempts atomic.Int64
	_ = event.Subscribe(f.reg, func(context.Context, *event.Event, event.UserCreated) error {
		attempts.Add(1)
		return errors.New("smtp down")
	})

	evt, meta := f.publish(t, "u1")
	start := time.Now()
	f.exec.Execute(context.Background(), evt, meta)

	waitFor(t, "event to reach the DLQ", func() bool { return f.dlq.Len() == 1 })

	// Linear 10ms backoff: 10ms then 20ms between the three attempts.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("dead-lettered after %v, want >= 30ms", elapsed)
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}

	entry := f.dlq.Entries()[0]
	if entry.Event.ID.String() != evt.ID.String() {
		t.Fatalf("DLQ holds %s, want %s", entry.Event.ID, evt.ID)
	}
	if entry.Metadata.RetryCount != 2 {
		t.Fatalf("DLQ retry count = %d, want 2", entry.Metadata.RetryCount)
	}
	if !strings.Contains(entry.Error, "smtp down") {
		t.Fatalf("DLQ error = %q", entry.Error)
	}

	st := f.stored(t, meta)
	if st.Status != event.StatusFailed || st.RetryCount != 2 {
		t.Fatalf("stored = %s/%d, want failed/2", st.Status, st.RetryCount)
	}
	if f.hooks.count("failed") != 3 || f.hooks.count("retrying") != 2 || f.hooks.count("dead_lettered") != 1 {
		t.Fatalf("unexpected hooks: %+v", f.hooks.calls)
	}
}

func TestExecutor_PartialFailureRunsAllHandlers(t *testing.T) {
	f := setupExecutor(t, 0)
	var ok atomic.Bool
	_ = event.Subscribe(f.reg, func(context.Context, *event.Event, event.UserCreated) error {
		return errors.New("first failed")
	})
	_ = event.Subscribe(f.reg, func(context.Context, *event.Event, event.UserCreated) error {
		ok.Store(true)
		return nil
	})
	_ = event.Subscribe(f.reg, func(context.Context, *event.Event, event.UserCreated) error {
		panic("third panicked")
	})

	evt, meta := f.publish(t, "u1")
	f.exec.Execute(context.Background(), evt, meta)

	if !ok.Load() {
		t.Fatal("sibling handler did not run")
	}
	st := f.stored(t, meta)
	if st.Status != event.StatusFailed {
		t.Fatalf("stored status = %s, want failed", st.Status)
	}
	if !strings.Contains(st.Error, "first failed") || !strings.Contains(st.Error, "third panicked") {
		t.Fatalf("expected joined errors, got %q", st.Error)
	}
	// Zero retries: dead-lettered immediately.
	if f.dlq.Len() != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", f.dlq.Len())
	}
}

func TestExecutor_ProcessingGuard(t *testing.T) {
	f := setupExecutor(t, 3)
	release := make(chan struct{})
	var calls atomic.Int64
	_ = event.Subscribe(f.reg, func(context.Context, *event.Event, event.UserCreated) error {
		calls.Add(1)
		<-release
		return nil
	})

	evt, meta := f.publish(t, "u1")
	done := make(chan struct{})
	go func() {
		f.exec.Execute(context.Background(), evt, meta)
		close(done)
	}()
	waitFor(t, "first delivery to start", func() bool { return calls.Load() == 1 })

	// Same delivery ID while in flight: skipped.
	f.exec.Execute(context.Background(), evt, meta.Clone())
	if f.exec.InFlight() != 1 {
		t.Fatalf("expected 1 delivery in flight, got %d", f.exec.InFlight())
	}

	close(release)
	<-done
	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once, ran %d", calls.Load())
	}
}

func TestExecutor_RetryLostWhenPoolStopped(t *testing.T) {
	f := setupExecutor(t, 3)
	_ = event.Subscribe(f.reg, func(context.Context, *event.Event, event.UserCreated) error {
		return errors.New("boom")
	})
	if err := f.pool.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	evt, meta := f.publish(t, "u1")
	f.exec.Execute(context.Background(), evt, meta)

	st := f.stored(t, meta)
	if st.Status != event.StatusPending || st.RetryCount != 1 {
		t.Fatalf("stored = %s/%d, want pending/1", st.Status, st.RetryCount)
	}
	if f.hooks.count("retrying") != 0 {
		t.Fatal("retrying hook must not fire when scheduling failed")
	}
}
