package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/raw-leak/rivulex/pkg/rivulex"
)

func main() {
	// Parse flags
	redisAddr := flag.String("redis", getEnv("REDIS_HOST", "localhost")+":"+getEnv("REDIS_PORT", "6379"), "Redis address (host:port)")
	password := flag.String("password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	useTLS := flag.Bool("tls", getEnvBool("REDIS_USE_TLS", false), "Enable TLS")
	streams := flag.String("streams", "", "Comma-separated streams (required)")
	group := flag.String("group", "", "Consumer group (required)")
	action := flag.String("action", "event", "Action name to handle")
	failRate := flag.Float64("fail-rate", 0.0, "Fraction [0,1] of events to randomly fail")
	processTime := flag.Duration("process-time", 0, "Simulated processing time (e.g., 2s)")
	enableTrimmer := flag.Bool("trimmer", false, "Enable the embedded trimmer")

	flag.Parse()

	if *streams == "" {
		fmt.Fprintln(os.Stderr, "Error: --streams is required")
		flag.Usage()
		os.Exit(1)
	}

	if *group == "" {
		fmt.Fprintln(os.Stderr, "Error: --group is required")
		flag.Usage()
		os.Exit(1)
	}

	opts := &redis.Options{
		Addr:     *redisAddr,
		Password: *password,
	}
	if *useTLS {
		host := strings.Split(*redisAddr, ":")[0]
		opts.TLSConfig = &tls.Config{
			ServerName: host,
		}
	}

	client := redis.NewClient(opts)

	pingCtx := context.Background()
	if err := client.Ping(pingCtx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to Redis at %s: %v\n", *redisAddr, err)
		os.Exit(1)
	}

	cfg := rivulex.DefaultConfig()
	cfg.Group = *group
	cfg.Streams = strings.Split(*streams, ",")
	cfg.Trimmer.Enabled = *enableTrimmer

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handler := func(ctx context.Context, ev *rivulex.Event) error {
		timestamp := time.Now().Format(time.RFC3339)
		fmt.Printf("[%s] <- %s | %s | attempt=%d | %s\n", timestamp, ev.ID, ev.Action, ev.Attempt, ev.Payload)

		if *processTime > 0 {
			time.Sleep(*processTime)
		}

		if *failRate > 0 && rand.Float64() < *failRate {
			err := fmt.Errorf("simulated error (fail-rate=%.2f)", *failRate)
			fmt.Printf("[%s] FAIL %s: %v\n", timestamp, ev.ID, err)
			return err
		}

		if err := ev.Ack(ctx); err != nil {
			return err
		}
		fmt.Printf("[%s] ACK %s\n", timestamp, ev.ID)
		return nil
	}

	sub, err := rivulex.NewSubscriber(client, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, stream := range cfg.Streams {
		sub.Stream(stream).Action(*action, handler)
	}

	sub.Hooks().On(rivulex.HookRejected, func(hev rivulex.HookEvent) {
		fmt.Printf("[%s] REJECTED %s\n", time.Now().Format(time.RFC3339), hev.ID)
	})
	sub.Hooks().On(rivulex.HookTimeout, func(hev rivulex.HookEvent) {
		fmt.Printf("[%s] TIMEOUT %s\n", time.Now().Format(time.RFC3339), hev.ID)
	})

	if err := sub.Listen(); err != nil {
		fmt.Fprintf(os.Stderr, "Error listening: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("[%s] Joined group '%s' on streams %v\n",
		time.Now().Format(time.RFC3339), *group, cfg.Streams)

	// Wait for interrupt
	<-ctx.Done()

	fmt.Printf("[%s] Shutting down gracefully...\n", time.Now().Format(time.RFC3339))

	if err := sub.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: shutdown error: %v\n", err)
	}

	fmt.Printf("[%s] Shutdown complete\n", time.Now().Format(time.RFC3339))
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
