package rivulex

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newTestClient creates a Redis client for integration tests. Reads
// REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_USE_TLS env vars and
// defaults to localhost:6379.
func newTestClient() *redis.Client {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}

	opts := &redis.Options{
		Addr:     host + ":" + port,
		Password: os.Getenv("REDIS_PASSWORD"),
	}

	useTLS := os.Getenv("REDIS_USE_TLS")
	if useTLS == "true" || useTLS == "1" || useTLS == "yes" {
		opts.TLSConfig = &tls.Config{
			ServerName: host,
		}
	}

	return redis.NewClient(opts)
}

// uniqueStream returns a test-scoped stream name like
// "test-TestName-1707000000-abc123" and registers cleanup of the
// stream, its dead-letter sibling and its trimmer key.
func uniqueStream(t *testing.T, client *redis.Client) string {
	t.Helper()
	timestamp := time.Now().Unix()
	shortUUID := uuid.New().String()[:8]
	name := strings.ReplaceAll(t.Name(), "/", "-")
	stream := fmt.Sprintf("test-%s-%d-%s", name, timestamp, shortUUID)

	t.Cleanup(func() {
		ctx := context.Background()
		client.Del(ctx, stream, stream+"-dlq", TrimmerKey(stream))
	})

	return stream
}

// waitFor polls condition every 100ms until it returns true or timeout
// expires.
func waitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("waitFor timed out after %v", timeout)
}

// pendingCount returns the number of pending records for a
// stream+group.
func pendingCount(ctx context.Context, client *redis.Client, stream, group string) (int64, error) {
	pending, err := client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, err
	}
	return pending.Count, nil
}
