package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/raw-leak/rivulex/pkg/rivulex"
)

func main() {
	// Parse flags
	redisAddr := flag.String("redis", getEnv("REDIS_HOST", "localhost")+":"+getEnv("REDIS_PORT", "6379"), "Redis address (host:port)")
	password := flag.String("password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	useTLS := flag.Bool("tls", getEnvBool("REDIS_USE_TLS", false), "Enable TLS")
	group := flag.String("group", "", "Publisher group label (required)")
	stream := flag.String("stream", "", "Default stream (required)")
	action := flag.String("action", "event", "Action name")

	var autoPayloads multiString
	flag.Var(&autoPayloads, "auto", "Publish payloads and exit (can be repeated)")

	flag.Parse()

	if *group == "" {
		fmt.Fprintln(os.Stderr, "Error: --group is required")
		flag.Usage()
		os.Exit(1)
	}

	if *stream == "" {
		fmt.Fprintln(os.Stderr, "Error: --stream is required")
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

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to Redis at %s: %v\n", *redisAddr, err)
		os.Exit(1)
	}

	cfg := rivulex.DefaultConfig()
	cfg.Group = *group
	cfg.DefaultStream = *stream

	pub, err := rivulex.NewPublisher(client, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Auto mode: publish args and exit
	if len(autoPayloads) > 0 {
		for _, payload := range autoPayloads {
			id, err := pub.Publish(ctx, *action, json.RawMessage(payload), nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error publishing event: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Published: %s\n", id)
		}
		return
	}

	// Interactive mode: read from stdin
	fmt.Printf("# Publisher ready. Enter JSON payloads (one per line). Press Ctrl+C to exit.\n")
	fmt.Printf("# Publishing to: %s (action=%s, group=%s)\n\n", *stream, *action, *group)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		id, err := pub.Publish(ctx, *action, json.RawMessage(line), nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Printf("Published: %s\n", id)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
		os.Exit(1)
	}
}

// multiString allows multiple occurrences of the same flag
type multiString []string

func (m *multiString) String() string {
	return strings.Join(*m, ",")
}

func (m *multiString) Set(value string) error {
	*m = append(*m, value)
	return nil
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
