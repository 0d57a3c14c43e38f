package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"beatgrok/internal/logger"
	"beatgrok/internal/metrics"
	"beatgrok/internal/pipeline"
)

// FileProcessor processes one archive. *pipeline.Driver satisfies it.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) pipeline.Stats
}

// Pool fans archives out to a fixed number of workers. Files are
// independent; a failure or panic in one never affects the others.
type Pool struct {
	processor FileProcessor
	workers   int

	// Metrics
	processed atomic.Uint64
	failed    atomic.Uint64
	records   atomic.Int64
}

// Config holds worker pool configuration
type Config struct {
	Processor FileProcessor
	Workers   int
}

type job struct {
	index int
	path  string
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &Pool{
		processor: cfg.Processor,
		workers:   cfg.Workers,
	}
}

// Run processes every path and blocks until all are done. Results are in
// input order. Cancelling ctx stops handing out new files; files already
// running see the cancellation through their own context.
func (p *Pool) Run(ctx context.Context, paths []string) []pipeline.Stats {
	log := logger.WithComponent("worker_pool")

	workers := p.workers
	if workers > len(paths) {
		workers = len(paths)
	}
	log.Info().
		Int("workers", workers).
		Int("files", len(paths)).
		Msg("starting worker pool")

	results := make([]pipeline.Stats, len(paths))
	jobs := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, jobs, results, &wg)
	}

	start := time.Now()
	skipped := 0
feed:
	for i, path := range paths {
		select {
		case <-ctx.Done():
			for j := i; j < len(paths); j++ {
				results[j] = pipeline.Stats{Path: paths[j], Err: ctx.Err()}
			}
			skipped = len(paths) - i
			break feed
		case jobs <- job{index: i, path: path}:
		}
	}
	close(jobs)
	wg.Wait()

	stats := p.Stats()
	log.Info().
		Uint64("processed", stats.Processed).
		Uint64("failed", stats.Failed).
		Int64("records", stats.Records).
		Int("not_started", skipped).
		Dur("duration", time.Since(start)).
		Msg("worker pool finished")

	return results
}

// worker processes archives from the channel
func (p *Pool) worker(ctx context.Context, id int, jobs <-chan job, results []pipeline.Stats, wg *sync.WaitGroup) {
	defer wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()
	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	for j := range jobs {
		st := p.process(ctx, id, j.path)
		results[j.index] = st

		if st.Err != nil {
			p.failed.Add(1)
		} else {
			p.processed.Add(1)
		}
		p.records.Add(st.Records)
	}
}

// process runs one file with panic recovery so the worker survives.
func (p *Pool) process(ctx context.Context, id int, path string) (st pipeline.Stats) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log := logger.WithComponent("worker")
			log.Error().
				Int("worker_id", id).
				Str("file", path).
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
			st = pipeline.Stats{Path: path, Err: fmt.Errorf("panic processing %s: %v", path, r)}
		}
	}()

	return p.processor.ProcessFile(ctx, path)
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
		Records:   p.records.Load(),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Records   int64  `json:"records"`
}
