package rivulex

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_StreamAndPendingStats(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := newTestClient()
	defer client.Close()
	ctx := context.Background()

	stream := uniqueStream(t, client)
	group := "admin-group"

	require.NoError(t, client.XGroupCreateMkStream(ctx, stream, group, "0").Err())

	fields, _, err := encodeFields("a", map[string]string{}, nil, "g", time.Now())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: stream, ID: "*", Values: fields}).Err())
	}

	// Deliver without acking so they stay pending.
	_, err = client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: "admin-consumer",
		Streams:  []string{stream, ">"},
		Count:    10,
		Block:    time.Second,
	}).Result()
	require.NoError(t, err)

	cfg := DefaultConfig()
	admin, err := NewAdmin(client, cfg)
	require.NoError(t, err)

	info, err := admin.StreamInfo(ctx, stream)
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Length)
	assert.Equal(t, int64(1), info.Groups)
	assert.NotEmpty(t, info.FirstID)

	pending, err := admin.PendingStats(ctx, stream, group)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pending.Count)
	require.Len(t, pending.Consumers, 1)
	assert.Equal(t, "admin-consumer", pending.Consumers[0].Name)

	consumers, err := admin.ConsumerInfo(ctx, stream, group)
	require.NoError(t, err)
	require.Len(t, consumers, 1)
	assert.Equal(t, int64(3), consumers[0].Pending)
}

func TestAdmin_DeadLetterPeek(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := newTestClient()
	defer client.Close()
	ctx := context.Background()

	dlq := uniqueStream(t, client)
	cfg := DefaultConfig()
	cfg.DeadLetterStream = dlq

	headers := Headers{
		HeaderRejected:      true,
		HeaderRejectedGroup: "g",
	}
	fields, _, err := encodeFields("a", map[string]string{"id": "1"}, headers, "g", time.Now())
	require.NoError(t, err)
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: dlq, ID: "*", Values: fields}).Err())

	admin, err := NewAdmin(client, cfg)
	require.NoError(t, err)

	size, err := admin.DeadLetterSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	events, err := admin.DeadLetterPeek(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Headers.Rejected())
	assert.Equal(t, "a", events[0].Action)
}

func TestUnitAdmin_RequiresClient(t *testing.T) {
	_, err := NewAdmin(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrMissingClient)
}
