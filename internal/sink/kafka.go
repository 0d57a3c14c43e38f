package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"beatgrok/internal/config"
	"beatgrok/internal/logger"
	"beatgrok/internal/metrics"
)

// Kafka sink errors
var (
	ErrNoBrokers = errors.New("at least one broker is required")
	ErrNoTopic   = errors.New("topic is required")
)

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes one message per record, keyed by host, using a pool of
// writers with retry and exponential backoff.
type Kafka struct {
	cfg     config.ProducerConfig
	topic   string
	writers []messageWriter
	pool    chan messageWriter
	closed  atomic.Bool

	// Metrics
	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
	bytesWritten   atomic.Uint64
}

// KafkaOption is a functional option for configuring the sink
type KafkaOption func(*kafkaOptions)

type kafkaOptions struct {
	newWriter func() messageWriter
}

// withWriterFactory replaces the kafka-go writer, for tests.
func withWriterFactory(f func() messageWriter) KafkaOption {
	return func(o *kafkaOptions) { o.newWriter = f }
}

// NewKafka creates a kafka sink with the given configuration
func NewKafka(brokers []string, topic string, cfg config.ProducerConfig, opts ...KafkaOption) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrNoTopic
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}

	o := kafkaOptions{
		newWriter: func() messageWriter {
			return &kafka.Writer{
				Addr:         kafka.TCP(brokers...),
				Topic:        topic,
				Balancer:     &kafka.Hash{}, // Partition by host
				BatchSize:    cfg.BatchSize,
				BatchTimeout: cfg.BatchTimeout,
				WriteTimeout: cfg.WriteTimeout,
				RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
				Compression:  getCompression(cfg.Compression),
				MaxAttempts:  1, // retries are ours
			}
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	k := &Kafka{
		cfg:     cfg,
		topic:   topic,
		writers: make([]messageWriter, cfg.PoolSize),
		pool:    make(chan messageWriter, cfg.PoolSize),
	}
	for i := 0; i < cfg.PoolSize; i++ {
		w := o.newWriter()
		k.writers[i] = w
		k.pool <- w
	}
	return k, nil
}

// getCompression returns the kafka compression codec
func getCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.None
	}
}

// Write publishes the batch
func (k *Kafka) Write(ctx context.Context, batch []Entry) error {
	if k.closed.Load() {
		return ErrClosed
	}
	if len(batch) == 0 {
		return nil
	}

	log := logger.WithComponent("kafka_sink")
	start := time.Now()

	now := time.Now()
	messages := make([]kafka.Message, len(batch))
	var bytesTotal uint64
	for i, e := range batch {
		value := bytes.TrimSuffix(e.Line, []byte{'\n'})
		messages[i] = kafka.Message{
			Key:   []byte(e.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "content_type", Value: []byte("application/x-influx-line-protocol")},
			},
			Time: now,
		}
		bytesTotal += uint64(len(value))
	}

	var writer messageWriter
	select {
	case writer = <-k.pool:
		defer func() { k.pool <- writer }()
	case <-ctx.Done():
		k.messagesFailed.Add(uint64(len(messages)))
		return ctx.Err()
	}

	err := k.writeWithRetry(ctx, writer, messages)
	duration := time.Since(start)
	metrics.SinkPublishDuration.Observe(duration.Seconds())

	if err != nil {
		log.Error().
			Err(err).
			Int("batch_size", len(messages)).
			Dur("duration", duration).
			Msg("failed to publish batch to kafka")
		k.messagesFailed.Add(uint64(len(messages)))
		metrics.SinkPublishTotal.WithLabelValues("kafka", "failed").Add(float64(len(messages)))
		return err
	}

	log.Debug().
		Int("batch_size", len(messages)).
		Dur("duration", duration).
		Msg("batch published to kafka")

	k.messagesSent.Add(uint64(len(messages)))
	k.bytesWritten.Add(bytesTotal)
	metrics.SinkPublishTotal.WithLabelValues("kafka", "success").Add(float64(len(messages)))
	return nil
}

// writeWithRetry publishes messages with exponential backoff retry
func (k *Kafka) writeWithRetry(ctx context.Context, writer messageWriter, messages []kafka.Message) error {
	log := logger.WithComponent("kafka_sink")
	var lastErr error
	backoff := k.cfg.RetryBackoff

	for attempt := 0; attempt <= k.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Int("batch_size", len(messages)).
				Dur("backoff", backoff).
				Msg("retrying kafka batch publish")

			metrics.SinkPublishRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := writer.WriteMessages(ctx, messages...)
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("batch_size", len(messages)).
			Msg("kafka batch publish attempt failed")

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	return fmt.Errorf("batch failed after %d attempts: %w", k.cfg.MaxRetries+1, lastErr)
}

// Close closes all writers in the pool
func (k *Kafka) Close() error {
	if k.closed.Swap(true) {
		return nil
	}

	var errs []error
	for _, w := range k.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns sink statistics
func (k *Kafka) Stats() KafkaStats {
	return KafkaStats{
		MessagesSent:   k.messagesSent.Load(),
		MessagesFailed: k.messagesFailed.Load(),
		BytesWritten:   k.bytesWritten.Load(),
	}
}

// KafkaStats holds sink metrics
type KafkaStats struct {
	MessagesSent   uint64
	MessagesFailed uint64
	BytesWritten   uint64
}
