// Package stream tails a redis stream of shipper envelopes and forwards the
// encoded records to a sink.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"beatgrok/internal/grok"
	"beatgrok/internal/logger"
	"beatgrok/internal/metrics"
	"beatgrok/internal/pipeline"
	"beatgrok/internal/sink"
	"beatgrok/internal/state"
)

// StartNewest reads only entries added after the first read.
const StartNewest = "$"

// ErrCheckpoint is returned when the stored position cannot be loaded.
var ErrCheckpoint = errors.New("checkpoint unavailable")

// Reader is the part of the redis client the source uses.
type Reader interface {
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
}

// Config holds source configuration
type Config struct {
	Stream        string
	Field         string
	CheckpointKey string
	Block         time.Duration
	Count         int64
	BatchSize     int
	BatchTimeout  time.Duration
	// RetryDelay is the pause after a failed read or sink write
	RetryDelay time.Duration
	// FlushTimeout bounds the final flush after cancellation
	FlushTimeout time.Duration
}

// Source reads entries, runs each payload through the line processor and
// hands records to the sink in batches. The checkpoint only moves after a
// batch is accepted, so a restart may replay but never skips entries.
type Source struct {
	cfg    Config
	client Reader
	store  state.Store
	sink   sink.Sink
	lp     *pipeline.LineProcessor
	log    zerolog.Logger

	batch     []sink.Entry
	lastID    string
	flushedID string
	lastFlush time.Time

	// Metrics
	entries atomic.Uint64
	records atomic.Uint64
	skipped atomic.Uint64
	flushes atomic.Uint64
}

// New creates a source. The rules are shared and read only.
func New(cfg Config, client Reader, store state.Store, sk sink.Sink, rules *grok.Ruleset) *Source {
	if cfg.Field == "" {
		cfg.Field = "message"
	}
	if cfg.Block <= 0 {
		cfg.Block = time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}

	return &Source{
		cfg:    cfg,
		client: client,
		store:  store,
		sink:   sk,
		lp:     pipeline.NewLineProcessor(rules),
		log:    logger.WithComponent("stream").With().Str("stream", cfg.Stream).Logger(),
		batch:  make([]sink.Entry, 0, cfg.BatchSize),
	}
}

// Run consumes the stream until ctx is cancelled. Pending records are
// flushed before it returns. Redis errors are logged and retried.
func (s *Source) Run(ctx context.Context) error {
	if err := s.loadCheckpoint(ctx); err != nil {
		return err
	}
	s.lastFlush = time.Now()
	s.log.Info().Str("from", s.lastID).Msg("stream source starting")

	for {
		msgs, err := s.read(ctx)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			metrics.StreamReadsTotal.WithLabelValues("failed").Inc()
			s.log.Error().Err(err).Msg("stream read failed")
			if !sleep(ctx, s.cfg.RetryDelay) {
				break
			}
			continue
		}

		if len(msgs) == 0 {
			metrics.StreamReadsTotal.WithLabelValues("empty").Inc()
		} else {
			metrics.StreamReadsTotal.WithLabelValues("ok").Inc()
		}
		for _, msg := range msgs {
			s.handle(msg)
		}

		if len(s.batch) >= s.cfg.BatchSize || time.Since(s.lastFlush) >= s.cfg.BatchTimeout {
			if !s.flush(ctx) {
				break
			}
		}
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FlushTimeout)
	defer cancel()
	s.flush(flushCtx)

	stats := s.Stats()
	s.log.Info().
		Uint64("entries", stats.Entries).
		Uint64("records", stats.Records).
		Uint64("skipped", stats.Skipped).
		Str("checkpoint", s.flushedID).
		Msg("stream source stopped")
	return nil
}

func (s *Source) loadCheckpoint(ctx context.Context) error {
	id, err := s.store.Get(ctx, s.cfg.CheckpointKey)
	switch {
	case errors.Is(err, state.ErrNotFound):
		id = StartNewest
	case err != nil:
		return fmt.Errorf("%w: %s: %v", ErrCheckpoint, s.cfg.CheckpointKey, err)
	}
	s.lastID = id
	s.flushedID = id
	return nil
}

func (s *Source) read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{s.cfg.Stream, s.lastID},
		Count:   s.cfg.Count,
		Block:   s.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []redis.XMessage
	for _, st := range streams {
		if st.Stream == s.cfg.Stream {
			msgs = append(msgs, st.Messages...)
		}
	}
	return msgs, nil
}

// handle processes one entry. A corrupt payload only loses that entry.
func (s *Source) handle(msg redis.XMessage) {
	s.lastID = msg.ID
	s.entries.Add(1)
	metrics.StreamEntriesTotal.Inc()

	payload, ok := msg.Values[s.cfg.Field].(string)
	if !ok {
		s.skipped.Add(1)
		metrics.LinesTotal.WithLabelValues("stream", pipeline.OutcomeSkip.String()).Inc()
		s.log.Warn().Str("id", msg.ID).Str("field", s.cfg.Field).Msg("entry has no payload")
		return
	}

	res := s.lp.Process([]byte(payload))
	metrics.LinesTotal.WithLabelValues("stream", res.Outcome.String()).Inc()

	switch res.Outcome {
	case pipeline.OutcomeRecord:
		line := make([]byte, len(res.Record))
		copy(line, res.Record)
		s.batch = append(s.batch, sink.Entry{Key: res.Message.Hostname, Line: line})
	case pipeline.OutcomeNoFields:
	case pipeline.OutcomeSkip, pipeline.OutcomeAbort:
		s.skipped.Add(1)
		s.log.Warn().Err(res.Err).Str("id", msg.ID).Msg("skipping entry")
	}
}

// flush delivers the batch and then advances the checkpoint. It retries
// until the sink accepts or ctx ends, and reports whether it succeeded.
func (s *Source) flush(ctx context.Context) bool {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 && s.lastID == s.flushedID {
		return true
	}

	for len(s.batch) > 0 {
		err := s.sink.Write(ctx, s.batch)
		if err == nil {
			break
		}
		s.log.Error().Err(err).Int("batch_size", len(s.batch)).Msg("sink write failed")
		if !sleep(ctx, s.cfg.RetryDelay) {
			return false
		}
	}

	n := len(s.batch)
	s.records.Add(uint64(n))
	metrics.RecordsWritten.WithLabelValues("stream").Add(float64(n))
	s.flushes.Add(1)
	s.batch = s.batch[:0]

	if err := s.store.Set(ctx, s.cfg.CheckpointKey, s.lastID); err != nil {
		s.log.Error().Err(err).Str("id", s.lastID).Msg("checkpoint update failed")
		return ctx.Err() == nil
	}
	s.flushedID = s.lastID
	s.log.Debug().Int("records", n).Str("checkpoint", s.lastID).Msg("batch flushed")
	return true
}

// Stats returns source statistics
func (s *Source) Stats() Stats {
	return Stats{
		Entries: s.entries.Load(),
		Records: s.records.Load(),
		Skipped: s.skipped.Load(),
		Flushes: s.flushes.Load(),
	}
}

// Stats holds source metrics
type Stats struct {
	Entries uint64 `json:"entries"`
	Records uint64 `json:"records"`
	Skipped uint64 `json:"skipped"`
	Flushes uint64 `json:"flushes"`
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
