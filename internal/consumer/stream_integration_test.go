//go:build integration
// +build integration

package consumer_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/internal/consumer"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6380"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStreamConsumer_RedeliversUnacked(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)

	stream := "games.final.integration-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { client.Del(ctx, stream) })

	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": `{"game_id":"g1"}`},
	}).Result()
	require.NoError(t, err)

	first := consumer.NewStreamConsumer(client, "handicapper-1", "handicappers").WithClaimIdle(200 * time.Millisecond)
	runCtx, cancel := context.WithCancel(ctx)
	messages, _ := first.ConsumeStream(runCtx, stream)

	select {
	case msg := <-messages:
		assert.Equal(t, id, msg.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
	cancel()

	// never acked: a restarted consumer claims it once idle
	time.Sleep(300 * time.Millisecond)
	restarted := consumer.NewStreamConsumer(client, "handicapper-1", "handicappers").WithClaimIdle(200 * time.Millisecond)
	runCtx, cancel = context.WithCancel(ctx)
	defer cancel()
	messages, _ = restarted.ConsumeStream(runCtx, stream)

	select {
	case msg := <-messages:
		assert.Equal(t, id, msg.ID)
		require.NoError(t, restarted.AckMessage(ctx, stream, msg.ID))
	case <-time.After(5 * time.Second):
		t.Fatal("pending message not redelivered")
	}
}
