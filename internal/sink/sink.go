// Package sink delivers encoded records produced by the stream source.
package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink is closed")

// Entry is one encoded record.
type Entry struct {
	// Key groups records, normally the host tag
	Key string
	// Line is a line-protocol record including its trailing newline
	Line []byte
}

// Sink accepts batches of records. Write either delivers the whole batch
// or returns an error; callers retry the batch on error.
type Sink interface {
	Write(ctx context.Context, batch []Entry) error
	Close() error
}

// Writer writes records to an io.Writer, one per line.
type Writer struct {
	mu     sync.Mutex
	bw     *bufio.Writer
	closed bool
}

// NewWriter returns a Sink writing to w. The caller keeps ownership of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write writes and flushes the batch.
func (s *Writer) Write(ctx context.Context, batch []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for _, e := range batch {
		if _, err := s.bw.Write(e.Line); err != nil {
			return fmt.Errorf("sink write: %w", err)
		}
		if n := len(e.Line); n == 0 || e.Line[n-1] != '\n' {
			if err := s.bw.WriteByte('\n'); err != nil {
				return fmt.Errorf("sink write: %w", err)
			}
		}
	}
	if err := s.bw.Flush(); err != nil {
		return fmt.Errorf("sink flush: %w", err)
	}
	return nil
}

// Close flushes pending output. Later writes fail with ErrClosed.
func (s *Writer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.bw.Flush()
}
