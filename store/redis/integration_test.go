//go:build integration

package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/eventbus/dlq"
	"github.com/xraph/eventbus/event"
	redisstore "github.com/xraph/eventbus/store/redis"
)

// setupRedisContainer starts a real Redis 7 container and returns a client
// connected to it. The container is terminated when the test ends.
func setupRedisContainer(t *testing.T) *goredis.Client {
	t.Helper()

	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_DeliveryLifecycle(t *testing.T) {
	client := setupRedisContainer(t)
	s := redisstore.New(client, redisstore.WithTTL(time.Minute), redisstore.WithKeyPrefix("it:"))
	ctx := t.Context()

	require.NoError(t, s.Ping(ctx))

	evt, err := event.New(event.UserCreated{UserID: "u1", TenantID: "t1"})
	require.NoError(t, err)
	meta := event.NewMetadata(evt.Name, "inst_it")
	require.NoError(t, s.SaveEvent(ctx, evt, meta))

	meta.MarkProcessing(time.Now().UTC())
	require.NoError(t, s.UpdateEventMetadata(ctx, meta.ID, meta))
	meta.MarkFailed(errors.New("boom"))
	require.NoError(t, s.UpdateEventMetadata(ctx, meta.ID, meta))

	failed, err := s.GetFailedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, meta.ID, failed[0].Metadata.ID)

	require.NoError(t, s.PushDLQ(ctx, dlq.NewEntry(evt, meta, nil)))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Failed)
	assert.EqualValues(t, 1, st.DeadLettered)

	n, err := s.ClearOldEvents(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := s.CountDLQ(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
