package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for beatgrok.
type Config struct {
	Files   FilesConfig
	Stream  StreamConfig
	Kafka   KafkaConfig
	Metrics MetricsConfig
	// LogLevel is a zerolog level name
	LogLevel string
}

// FilesConfig configures the archive batch mode.
type FilesConfig struct {
	// Glob selecting input archives
	Glob string
	// OutputDir receives one .influx.gz file per input
	OutputDir string
	// Workers is the number of files processed in parallel
	Workers int
}

// StreamConfig configures the redis stream source.
type StreamConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Stream key written by the shipper
	Stream string
	// Field holding the JSON payload in each stream entry
	Field string
	// CheckpointKey stores the last processed entry id
	CheckpointKey string
	Block         time.Duration
	Count         int64
	BatchSize     int
	BatchTimeout  time.Duration
}

// KafkaConfig configures the kafka sink used by the stream source.
type KafkaConfig struct {
	// Brokers is empty when records should go to stdout instead
	Brokers  []string
	Topic    string
	Producer ProducerConfig
}

// ProducerConfig holds kafka writer tuning.
type ProducerConfig struct {
	PoolSize     int
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
	Compression  string
	MaxRetries   int
	RetryBackoff time.Duration
}

// MetricsConfig configures the operational HTTP server.
type MetricsConfig struct {
	// Addr is empty to disable the server
	Addr string
}

var (
	ErrNoGlob      = errors.New("files glob cannot be empty")
	ErrNoOutputDir = errors.New("output directory cannot be empty")
	ErrNoStream    = errors.New("stream key cannot be empty")
	ErrNoTopic     = errors.New("kafka topic is required when brokers are set")
)

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		Files: FilesConfig{
			Glob:      "output/*.txt.zst",
			OutputDir: "parsed",
			Workers:   4,
		},
		Stream: StreamConfig{
			RedisAddr:     "localhost:6379",
			Stream:        "filebeat",
			Field:         "message",
			CheckpointKey: "filebeat_last",
			Block:         time.Second,
			Count:         1000,
			BatchSize:     500,
			BatchTimeout:  time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "beatgrok-metrics",
			Producer: ProducerConfig{
				PoolSize:     2,
				BatchSize:    500,
				BatchTimeout: 100 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: 1,
				Compression:  "zstd",
				MaxRetries:   3,
				RetryBackoff: 100 * time.Millisecond,
			},
		},
		LogLevel: "info",
	}
}

// Load returns Default overridden by BEATGROK_* environment variables.
func Load() *Config {
	cfg := Default()

	cfg.LogLevel = getenv("BEATGROK_LOG_LEVEL", cfg.LogLevel)
	cfg.Metrics.Addr = getenv("BEATGROK_METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Files.Glob = getenv("BEATGROK_GLOB", cfg.Files.Glob)
	cfg.Files.OutputDir = getenv("BEATGROK_OUTPUT_DIR", cfg.Files.OutputDir)
	cfg.Files.Workers = getenvInt("BEATGROK_WORKERS", cfg.Files.Workers)

	cfg.Stream.RedisAddr = getenv("REDIS_HOST", cfg.Stream.RedisAddr)
	cfg.Stream.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.Stream.RedisDB = getenvInt("BEATGROK_REDIS_DB", cfg.Stream.RedisDB)
	cfg.Stream.Stream = getenv("BEATGROK_STREAM", cfg.Stream.Stream)
	cfg.Stream.CheckpointKey = getenv("BEATGROK_CHECKPOINT_KEY", cfg.Stream.CheckpointKey)
	cfg.Stream.Block = getenvDuration("BEATGROK_STREAM_BLOCK", cfg.Stream.Block)
	cfg.Stream.BatchTimeout = getenvDuration("BEATGROK_STREAM_FLUSH", cfg.Stream.BatchTimeout)

	if v := os.Getenv("BEATGROK_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = SplitList(v)
	}
	cfg.Kafka.Topic = getenv("BEATGROK_KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.Producer.Compression = getenv("BEATGROK_KAFKA_COMPRESSION", cfg.Kafka.Producer.Compression)

	return cfg
}

// ValidateFiles checks the settings used by the archive mode.
func (c *Config) ValidateFiles() error {
	if c.Files.Glob == "" {
		return ErrNoGlob
	}
	if c.Files.OutputDir == "" {
		return ErrNoOutputDir
	}
	return nil
}

// ValidateStream checks the settings used by the stream mode.
func (c *Config) ValidateStream() error {
	if c.Stream.Stream == "" {
		return ErrNoStream
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return ErrNoTopic
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
