package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
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
	group := flag.String("group", "", "Group label (required)")
	interval := flag.Duration("interval", 48*time.Hour, "Trim interval")
	retention := flag.Duration("retention", 48*time.Hour, "Retention period")

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
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to Redis at %s: %v\n", *redisAddr, err)
		os.Exit(1)
	}

	cfg := rivulex.DefaultConfig()
	cfg.Group = *group
	cfg.Streams = strings.Split(*streams, ",")
	cfg.Trimmer.Enabled = true
	cfg.Trimmer.IntervalTimeMs = interval.Milliseconds()
	cfg.Trimmer.RetentionPeriodMs = retention.Milliseconds()

	trimmer, err := rivulex.NewTrimmer(client, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	trimmer.Start()
	fmt.Printf("[%s] Trimmer running on streams %v (interval=%v, retention=%v)\n",
		time.Now().Format(time.RFC3339), cfg.Streams, *interval, *retention)

	<-ctx.Done()

	fmt.Printf("[%s] Shutting down...\n", time.Now().Format(time.RFC3339))
	trimmer.Stop()
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
