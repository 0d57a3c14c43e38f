package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "output/*.txt.zst", cfg.Files.Glob)
	assert.Equal(t, "parsed", cfg.Files.OutputDir)
	assert.Equal(t, "filebeat", cfg.Stream.Stream)
	assert.Equal(t, "filebeat_last", cfg.Stream.CheckpointKey)
	assert.Empty(t, cfg.Kafka.Brokers)
	require.NoError(t, cfg.ValidateFiles())
	require.NoError(t, cfg.ValidateStream())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BEATGROK_GLOB", "/data/*.zst")
	t.Setenv("BEATGROK_WORKERS", "9")
	t.Setenv("BEATGROK_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("BEATGROK_STREAM_BLOCK", "250ms")
	t.Setenv("REDIS_HOST", "redis:6379")

	cfg := Load()

	assert.Equal(t, "/data/*.zst", cfg.Files.Glob)
	assert.Equal(t, 9, cfg.Files.Workers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.Block)
	assert.Equal(t, "redis:6379", cfg.Stream.RedisAddr)
}

func TestLoadIgnoresBadNumbers(t *testing.T) {
	t.Setenv("BEATGROK_WORKERS", "many")
	t.Setenv("BEATGROK_STREAM_BLOCK", "soon")

	cfg := Load()

	assert.Equal(t, 4, cfg.Files.Workers)
	assert.Equal(t, time.Second, cfg.Stream.Block)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Files.Glob = ""
	assert.ErrorIs(t, cfg.ValidateFiles(), ErrNoGlob)

	cfg = Default()
	cfg.Files.OutputDir = ""
	assert.ErrorIs(t, cfg.ValidateFiles(), ErrNoOutputDir)

	cfg = Default()
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topic = ""
	assert.ErrorIs(t, cfg.ValidateStream(), ErrNoTopic)
}
