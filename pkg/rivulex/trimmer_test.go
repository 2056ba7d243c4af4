package rivulex

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitTrimmer_NextIntervalWithinJitterBounds(t *testing.T) {
	tr := &Trimmer{interval: 10 * time.Minute}

	for i := 0; i < 100; i++ {
		next := tr.nextInterval()
		assert.GreaterOrEqual(t, next, 10*time.Minute-trimJitter)
		assert.LessOrEqual(t, next, 10*time.Minute+trimJitter)
	}
}

func TestUnitTrimmer_NextIntervalFlooredForShortIntervals(t *testing.T) {
	tr := &Trimmer{interval: 10 * time.Second}

	for i := 0; i < 100; i++ {
		assert.GreaterOrEqual(t, tr.nextInterval(), time.Second)
	}
}

func TestUnitTrimmer_RecordJSONShape(t *testing.T) {
	record := trimRecord{
		ClientID:        "rivulex:g:trimmer:1",
		TrimmedAt:       1700000000000,
		IntervalTime:    172800000,
		RetentionPeriod: 172800000,
		MinID:           "1699827200000-0",
		Group:           "g",
	}

	b, err := json.Marshal(record)
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, json.Unmarshal(b, &keys))

	for _, key := range []string{"clientId", "trimmedAt", "intervalTime", "retentionPeriod", "minId", "group"} {
		assert.Contains(t, keys, key)
	}
}

func TestTrimmer_TrimWritesCoordinationKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := newTestClient()
	defer client.Close()
	ctx := context.Background()

	stream := uniqueStream(t, client)

	// Two entries far in the past, one fresh.
	for _, id := range []string{"1-1", "2-1"} {
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream, ID: id, Values: map[string]any{"action": "a", "payload": "{}", "headers": "{}"},
		}).Err())
	}
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream, ID: "*", Values: map[string]any{"action": "a", "payload": "{}", "headers": "{}"},
	}).Err())

	tr := &Trimmer{
		client:    client,
		group:     "g",
		clientID:  TrimmerClientID("g"),
		streams:   []string{stream},
		interval:  time.Minute,
		retention: 10 * time.Second,
		logger:    slog.Default(),
	}

	require.NoError(t, tr.trimStream(ctx, stream))

	length, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length, "retention-expired entries removed")

	raw, err := client.Get(ctx, TrimmerKey(stream)).Result()
	require.NoError(t, err)

	var record trimRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	assert.Equal(t, tr.clientID, record.ClientID)
	assert.Equal(t, "g", record.Group)
	assert.Equal(t, int64(60000), record.IntervalTime)
	assert.Equal(t, int64(10000), record.RetentionPeriod)
	assert.NotEmpty(t, record.MinID)

	ttl, err := client.TTL(ctx, TrimmerKey(stream)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestTrimmer_CoordinationKeySkipsSecondTrim(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := newTestClient()
	defer client.Close()
	ctx := context.Background()

	stream := uniqueStream(t, client)

	tr := &Trimmer{
		client:    client,
		group:     "g",
		clientID:  TrimmerClientID("g"),
		streams:   []string{stream},
		interval:  time.Minute,
		retention: 10 * time.Second,
		logger:    slog.Default(),
	}

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream, ID: "1-1", Values: map[string]any{"action": "a", "payload": "{}", "headers": "{}"},
	}).Err())

	require.NoError(t, tr.trimStream(ctx, stream))

	// A second old entry appended after the first trim survives while
	// the coordination key is alive.
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream, ID: "2-1", Values: map[string]any{"action": "a", "payload": "{}", "headers": "{}"},
	}).Err())

	require.NoError(t, tr.trimStream(ctx, stream))

	length, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length, "second trim must be skipped")
}

func TestTrimmer_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := newTestClient()
	defer client.Close()

	stream := uniqueStream(t, client)

	cfg := DefaultConfig()
	cfg.Group = "g"
	cfg.Streams = []string{stream}

	tr, err := NewTrimmer(client, cfg)
	require.NoError(t, err)

	tr.Start()
	tr.Start() // second start is a no-op
	tr.Stop()
	tr.Stop() // second stop is a no-op
}
