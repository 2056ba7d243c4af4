package rivulex

import (
	"os"
)

type Config struct {
	// Group is the consumer group label. Required for both publishers
	// and subscribers.
	Group string

	// Streams lists the streams a subscriber reads. Required for
	// subscribers.
	Streams []string

	// DefaultStream receives publishes that carry no stream override.
	// Required for publishers.
	DefaultStream string

	// DeadLetterStream receives rejected events. Defaults to
	// DefaultDeadLetterStream.
	DeadLetterStream string

	// ClientID identifies this instance in coordination records and
	// consumer names. Auto-generated if empty.
	ClientID string

	Redis    RedisConfig
	Consumer ConsumerConfig
	Trimmer  TrimmerConfig
}

type RedisConfig struct {
	Address        string // default: "localhost:6379"
	Password       string
	DB             int
	PoolSize       int   // default: 10
	ReadTimeoutMs  int64 // default: 3000
	WriteTimeoutMs int64 // default: 3000
	UseTLS         bool  // default: false
}

type ConsumerConfig struct {
	AckTimeoutMs       int64 // default: 30000, min: 1000
	ProcessTimeoutMs   int64 // default: 200, min: 20
	ProcessConcurrency int   // default: 100, min: 1
	FetchBatchSize     int64 // default: 100, min: 1
	BlockTimeMs        int64 // default: 30000, min: 1000
	Retries            int64 // default: 3, min: 1
	ShutdownTimeoutMs  int64 // default: 30000
}

type TrimmerConfig struct {
	Enabled           bool
	IntervalTimeMs    int64 // default: 172800000 (48h), min: 10000
	RetentionPeriodMs int64 // default: 172800000 (48h), min: 10000
}

// DefaultConfig returns a Config with all default values. Group,
// Streams and DefaultStream are left empty and MUST be set by the
// caller where the role requires them.
func DefaultConfig() Config {
	return Config{
		DeadLetterStream: DefaultDeadLetterStream,
		Redis: RedisConfig{
			Address:        "localhost:6379",
			PoolSize:       10,
			ReadTimeoutMs:  3000,
			WriteTimeoutMs: 3000,
		},
		Consumer: ConsumerConfig{
			AckTimeoutMs:       30000,
			ProcessTimeoutMs:   200,
			ProcessConcurrency: 100,
			FetchBatchSize:     100,
			BlockTimeMs:        30000,
			Retries:            3,
			ShutdownTimeoutMs:  30000,
		},
		Trimmer: TrimmerConfig{
			IntervalTimeMs:    172800000,
			RetentionPeriodMs: 172800000,
		},
	}
}

// WithDefaults returns a new Config with zero-value fields replaced by
// defaults and out-of-range values clamped to their minimum.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	result := c

	if result.DeadLetterStream == "" {
		result.DeadLetterStream = defaults.DeadLetterStream
	}

	// Redis
	if result.Redis.Address == "" {
		result.Redis.Address = defaults.Redis.Address
	}
	if result.Redis.PoolSize == 0 {
		result.Redis.PoolSize = defaults.Redis.PoolSize
	}
	if result.Redis.ReadTimeoutMs == 0 {
		result.Redis.ReadTimeoutMs = defaults.Redis.ReadTimeoutMs
	}
	if result.Redis.WriteTimeoutMs == 0 {
		result.Redis.WriteTimeoutMs = defaults.Redis.WriteTimeoutMs
	}

	// Consumer: fill, then clamp to the documented minimums
	if result.Consumer.AckTimeoutMs == 0 {
		result.Consumer.AckTimeoutMs = defaults.Consumer.AckTimeoutMs
	}
	if result.Consumer.ProcessTimeoutMs == 0 {
		result.Consumer.ProcessTimeoutMs = defaults.Consumer.ProcessTimeoutMs
	}
	if result.Consumer.ProcessConcurrency == 0 {
		result.Consumer.ProcessConcurrency = defaults.Consumer.ProcessConcurrency
	}
	if result.Consumer.FetchBatchSize == 0 {
		result.Consumer.FetchBatchSize = defaults.Consumer.FetchBatchSize
	}
	if result.Consumer.BlockTimeMs == 0 {
		result.Consumer.BlockTimeMs = defaults.Consumer.BlockTimeMs
	}
	if result.Consumer.Retries == 0 {
		result.Consumer.Retries = defaults.Consumer.Retries
	}
	if result.Consumer.ShutdownTimeoutMs == 0 {
		result.Consumer.ShutdownTimeoutMs = defaults.Consumer.ShutdownTimeoutMs
	}
	result.Consumer.AckTimeoutMs = clampInt64(result.Consumer.AckTimeoutMs, 1000)
	result.Consumer.ProcessTimeoutMs = clampInt64(result.Consumer.ProcessTimeoutMs, 20)
	result.Consumer.ProcessConcurrency = clampInt(result.Consumer.ProcessConcurrency, 1)
	result.Consumer.FetchBatchSize = clampInt64(result.Consumer.FetchBatchSize, 1)
	result.Consumer.BlockTimeMs = clampInt64(result.Consumer.BlockTimeMs, 1000)
	result.Consumer.Retries = clampInt64(result.Consumer.Retries, 1)

	// Trimmer
	if result.Trimmer.IntervalTimeMs == 0 {
		result.Trimmer.IntervalTimeMs = defaults.Trimmer.IntervalTimeMs
	}
	if result.Trimmer.RetentionPeriodMs == 0 {
		result.Trimmer.RetentionPeriodMs = defaults.Trimmer.RetentionPeriodMs
	}
	result.Trimmer.IntervalTimeMs = clampInt64(result.Trimmer.IntervalTimeMs, 10000)
	result.Trimmer.RetentionPeriodMs = clampInt64(result.Trimmer.RetentionPeriodMs, 10000)

	return result
}

// ConfigFromEnv reads Redis connection settings from environment
// variables and returns a Config with those values set.
//
// Environment variables:
//   - REDIS_HOST: Redis hostname (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_USE_TLS: Enable TLS ("true" or "1") (default: false)
//
// The returned Config has Group, Streams and DefaultStream empty --
// callers must set the ones their role requires.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	cfg.Redis.Address = host + ":" + port

	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}

	tlsEnv := os.Getenv("REDIS_USE_TLS")
	cfg.Redis.UseTLS = (tlsEnv == "true" || tlsEnv == "1")

	return cfg
}

func clampInt64(v, min int64) int64 {
	if v < min {
		return min
	}
	return v
}

func clampInt(v, min int) int {
	if v < min {
		return min
	}
	return v
}
