package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/eventbus/event"
	mw "github.com/xraph/eventbus/middleware"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return nil
}

// seriesKey renders the attributes of one data point as
// "event_name/status/retry".
func seriesKey(set attribute.Set) string {
	name, _ := set.Value("event_name")
	status, _ := set.Value("status")
	retry, _ := set.Value("retry")
	return fmt.Sprintf("%s/%s/%t", name.AsString(), status.AsString(), retry.AsBool())
}

func attempt(t *testing.T, p event.Payload, retryCount int) (*event.Event, *event.Metadata) {
	t.Helper()
	evt, err := event.New(p)
	if err != nil {
		t.Fatalf("event.New: %v", err)
	}
	meta := event.NewMetadata(evt.Name, "inst_test")
	meta.RetryCount = retryCount
	return evt, meta
}

func TestMetrics_SeparatesFirstAttemptsFromRetries(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m := mw.MetricsWithMeter(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))

	cacheDown := errors.New("permission cache unavailable")
	runs := []struct {
		payload event.Payload
		retry   int
		err     error
	}{
		{event.UserCreated{UserID: "u1"}, 0, nil},
		{event.UserCreated{UserID: "u2"}, 0, nil},
		{event.RoleRevoked{UserID: "u1", RoleID: "admin"}, 0, cacheDown},
		{event.RoleRevoked{UserID: "u1", RoleID: "admin"}, 1, cacheDown},
		{event.RoleRevoked{UserID: "u1", RoleID: "admin"}, 2, nil},
	}
	for _, r := range runs {
		evt, meta := attempt(t, r.payload, r.retry)
		err := m(context.Background(), evt, meta, func(context.Context) error { return r.err })
		if !errors.Is(err, r.err) {
			t.Fatalf("middleware returned %v, want %v", err, r.err)
		}
	}

	sum, ok := collect(t, reader, "eventbus.handler.executions").(metricdata.Sum[int64])
	if !ok {
		t.Fatal("executions is not an int64 sum")
	}
	got := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		got[seriesKey(dp.Attributes)] = dp.Value
	}
	want := map[string]int64{
		"user.created/ok/false":    2,
		"role.revoked/error/false": 1,
		"role.revoked/error/true":  1,
		"role.revoked/ok/true":     1,
	}
	if len(got) != len(want) {
		t.Fatalf("series = %v, want %v", got, want)
	}
	for key, n := range want {
		if got[key] != n {
			t.Errorf("executions[%s] = %d, want %d", key, got[key], n)
		}
	}

	hist, ok := collect(t, reader, "eventbus.handler.duration").(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("duration is not a float64 histogram")
	}
	var observed uint64
	for _, dp := range hist.DataPoints {
		observed += dp.Count
	}
	if observed != uint64(len(runs)) {
		t.Errorf("duration observations = %d, want %d", observed, len(runs))
	}
}

func TestMetrics_DefaultNoopSafe(t *testing.T) {
	m := mw.Metrics()
	evt, meta := newTestEvent(t)

	called := false
	err := m(context.Background(), evt, meta, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("called=%v err=%v, want handler run without error", called, err)
	}
}

func TestMetrics_NilMetadataCountsAsFirstAttempt(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m := mw.MetricsWithMeter(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	evt, _ := newTestEvent(t)

	_ = m(context.Background(), evt, nil, func(context.Context) error { return nil })

	sum := collect(t, reader, "eventbus.handler.executions").(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || seriesKey(sum.DataPoints[0].Attributes) != "user.created/ok/false" {
		t.Fatalf("data points = %+v", sum.DataPoints)
	}
}
