// Package processor coordinates the live stream mode: redis source, sink,
// operational HTTP server and periodic stats reporting.
package processor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"beatgrok/internal/config"
	"beatgrok/internal/grok"
	"beatgrok/internal/logger"
	"beatgrok/internal/server"
	"beatgrok/internal/sink"
	"beatgrok/internal/state"
	"beatgrok/internal/stream"
)

// statsInterval is how often stats are logged
const statsInterval = 30 * time.Second

// Processor is the high-level coordinator for the stream mode.
type Processor struct {
	cfg   *config.Config
	rules *grok.Ruleset

	redis  *redis.Client
	reader stream.Reader
	store  state.Store
	sink   sink.Sink
	kafka  *sink.Kafka
	source *stream.Source
	server *server.Server

	wg sync.WaitGroup
}

// New constructs a Processor with given config.
func New(cfg *config.Config, rules *grok.Ruleset) *Processor {
	return &Processor{cfg: cfg, rules: rules}
}

// Run starts background goroutines and blocks until context cancelled.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().Int("rules", p.rules.Len()).Msg("processor starting")

	if err := p.cfg.ValidateStream(); err != nil {
		return err
	}

	p.initRedis()
	if err := p.initSink(); err != nil {
		log.Error().Err(err).Msg("failed to initialize sink")
		return fmt.Errorf("failed to initialize sink: %w", err)
	}
	defer p.closeAll()

	p.source = stream.New(stream.Config{
		Stream:        p.cfg.Stream.Stream,
		Field:         p.cfg.Stream.Field,
		CheckpointKey: p.cfg.Stream.CheckpointKey,
		Block:         p.cfg.Stream.Block,
		Count:         p.cfg.Stream.Count,
		BatchSize:     p.cfg.Stream.BatchSize,
		BatchTimeout:  p.cfg.Stream.BatchTimeout,
	}, p.reader, p.store, p.sink, p.rules)

	if p.cfg.Metrics.Addr != "" {
		p.server = server.New(server.Config{
			Addr:   p.cfg.Metrics.Addr,
			Health: p.healthCheck,
			Stats:  func() any { return p.stats() },
		})
		if err := p.server.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	statsCtx, stopStats := context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportStats(statsCtx)
	}()

	err := p.source.Run(ctx)
	stopStats()

	p.shutdown()
	return err
}

// initRedis creates the shared redis client unless one was injected
func (p *Processor) initRedis() {
	if p.reader != nil && p.store != nil {
		return
	}
	p.redis = state.NewRedisClient(state.RedisOptions{
		Addr:     p.cfg.Stream.RedisAddr,
		Password: p.cfg.Stream.RedisPassword,
		DB:       p.cfg.Stream.RedisDB,
	})
	if p.reader == nil {
		p.reader = p.redis
	}
	if p.store == nil {
		p.store = state.NewRedisStore(p.redis)
	}
	log := logger.WithComponent("processor")
	log.Info().
		Str("addr", p.cfg.Stream.RedisAddr).
		Str("stream", p.cfg.Stream.Stream).
		Msg("redis client initialized")
}

// initSink selects kafka when brokers are configured, stdout otherwise
func (p *Processor) initSink() error {
	if p.sink != nil {
		return nil
	}
	log := logger.WithComponent("processor")

	if len(p.cfg.Kafka.Brokers) == 0 {
		p.sink = sink.NewWriter(os.Stdout)
		log.Info().Msg("writing records to stdout")
		return nil
	}

	k, err := sink.NewKafka(p.cfg.Kafka.Brokers, p.cfg.Kafka.Topic, p.cfg.Kafka.Producer)
	if err != nil {
		return err
	}
	p.kafka = k
	p.sink = k
	log.Info().
		Strs("brokers", p.cfg.Kafka.Brokers).
		Str("topic", p.cfg.Kafka.Topic).
		Msg("kafka sink initialized")
	return nil
}

// shutdown stops the HTTP server and waits for background goroutines
func (p *Processor) shutdown() {
	log := logger.WithComponent("processor")
	log.Info().Msg("initiating graceful shutdown")

	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	p.wg.Wait()
	log.Info().Msg("processor stopped gracefully")
}

func (p *Processor) closeAll() {
	log := logger.WithComponent("processor")
	if err := p.sink.Close(); err != nil {
		log.Error().Err(err).Msg("sink close error")
	}
	if err := p.store.Close(); err != nil {
		log.Error().Err(err).Msg("state store close error")
	}
	if p.redis != nil {
		if err := p.redis.Close(); err != nil {
			log.Error().Err(err).Msg("redis close error")
		}
	}
}

// healthCheck pings redis when a real client is in use
func (p *Processor) healthCheck(ctx context.Context) error {
	if p.redis == nil {
		return nil
	}
	return p.redis.Ping(ctx).Err()
}

// Stats is the /stats payload
type Stats struct {
	Source stream.Stats     `json:"source"`
	Kafka  *sink.KafkaStats `json:"kafka,omitempty"`
}

func (p *Processor) stats() Stats {
	s := Stats{Source: p.source.Stats()}
	if p.kafka != nil {
		ks := p.kafka.Stats()
		s.Kafka = &ks
	}
	return s
}

// reportStats periodically logs statistics
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := p.stats()
			event := log.Info().
				Uint64("entries", s.Source.Entries).
				Uint64("records", s.Source.Records).
				Uint64("skipped", s.Source.Skipped).
				Uint64("flushes", s.Source.Flushes)
			if s.Kafka != nil {
				event = event.
					Uint64("producer_sent", s.Kafka.MessagesSent).
					Uint64("producer_failed", s.Kafka.MessagesFailed).
					Uint64("producer_bytes", s.Kafka.BytesWritten)
			}
			event.Msg("stats")
		}
	}
}
