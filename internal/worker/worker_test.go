package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatgrok/internal/pipeline"
)

// mockProcessor is a FileProcessor for testing
type mockProcessor struct {
	mu      sync.Mutex
	seen    []string
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	failOn  map[string]error
	panicOn map[string]bool
}

func (m *mockProcessor) ProcessFile(ctx context.Context, path string) pipeline.Stats {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	m.mu.Lock()
	m.seen = append(m.seen, path)
	m.mu.Unlock()

	if m.panicOn[path] {
		panic("boom")
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err := m.failOn[path]; err != nil {
		return pipeline.Stats{Path: path, Err: err}
	}
	return pipeline.Stats{Path: path, Records: 10}
}

func TestPoolProcessesAllFiles(t *testing.T) {
	mock := &mockProcessor{}
	pool := NewPool(Config{Processor: mock, Workers: 3})

	paths := []string{"a", "b", "c", "d", "e", "f", "g"}
	results := pool.Run(context.Background(), paths)

	require.Len(t, results, len(paths))
	for i, st := range results {
		assert.Equal(t, paths[i], st.Path, "results keep input order")
		assert.NoError(t, st.Err)
	}
	assert.ElementsMatch(t, paths, mock.seen)

	stats := pool.Stats()
	assert.Equal(t, uint64(7), stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, int64(70), stats.Records)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	mock := &mockProcessor{delay: 20 * time.Millisecond}
	pool := NewPool(Config{Processor: mock, Workers: 2})

	pool.Run(context.Background(), []string{"a", "b", "c", "d", "e", "f"})

	assert.LessOrEqual(t, mock.peak.Load(), int32(2))
}

func TestPoolIsolatesFailures(t *testing.T) {
	errBad := errors.New("bad archive")
	mock := &mockProcessor{
		failOn:  map[string]error{"b": errBad},
		panicOn: map[string]bool{"c": true},
	}
	pool := NewPool(Config{Processor: mock, Workers: 1})

	results := pool.Run(context.Background(), []string{"a", "b", "c", "d"})

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, errBad)
	require.Error(t, results[2].Err)
	assert.Contains(t, results[2].Err.Error(), "panic")
	assert.NoError(t, results[3].Err, "the worker survives a panic")

	stats := pool.Stats()
	assert.Equal(t, uint64(2), stats.Processed)
	assert.Equal(t, uint64(2), stats.Failed)
}

func TestPoolCancelled(t *testing.T) {
	mock := &mockProcessor{}
	pool := NewPool(Config{Processor: mock, Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := pool.Run(ctx, []string{"a", "b", "c"})

	require.Len(t, results, 3)
	for _, st := range results {
		if st.Err != nil {
			assert.ErrorIs(t, st.Err, context.Canceled)
		}
	}
}

func TestPoolEmpty(t *testing.T) {
	pool := NewPool(Config{Processor: &mockProcessor{}})
	assert.Empty(t, pool.Run(context.Background(), nil))
}

func TestNewPoolDefaults(t *testing.T) {
	pool := NewPool(Config{Processor: &mockProcessor{}})
	assert.Equal(t, 4, pool.workers)
}
