package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrWrite marks an output sink that no longer accepts bytes.
var ErrWrite = errors.New("write failed")

// OutputExt is appended to the stem of every input archive.
const OutputExt = ".influx.gz"

// inputSuffixes are stripped from input names, first match wins.
var inputSuffixes = []string{".txt.zst", ".json.zst", ".ndjson.zst", ".zst", ".txt"}

// OutputPath derives the output file for input inside dir.
func OutputPath(input, dir string) string {
	base := filepath.Base(input)
	for _, suffix := range inputSuffixes {
		if stem, ok := strings.CutSuffix(base, suffix); ok && stem != "" {
			base = stem
			break
		}
	}
	return filepath.Join(dir, base+OutputExt)
}

// Writer is a gzip compressed, newline delimited record file.
type Writer struct {
	path string
	f    *os.File
	bw   *bufio.Writer
	gz   *gzip.Writer

	written int64
	closed  bool
}

// Create creates (or truncates) path, making parent directories as needed.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", ErrWrite, filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrWrite, path, err)
	}

	w, err := NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.path = path
	w.f = f
	return w, nil
}

// NewWriter compresses into dst. Close does not close dst.
func NewWriter(dst io.Writer) (*Writer, error) {
	bw := bufio.NewWriterSize(dst, readBufSize)
	gz, err := gzip.NewWriterLevel(bw, gzip.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return &Writer{bw: bw, gz: gz}, nil
}

// Write appends p, which must already be newline terminated.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.gz.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w: %s: %v", ErrWrite, w.path, err)
	}
	return n, nil
}

// Written returns the number of uncompressed bytes accepted.
func (w *Writer) Written() int64 {
	return w.written
}

// Close finishes the gzip stream, flushes and closes the file.
// It is safe to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if err := w.gz.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.bw.Flush(); err != nil {
		errs = append(errs, err)
	}
	if w.f != nil {
		if err := w.f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: close %s: %v", ErrWrite, w.path, errors.Join(errs...))
	}
	return nil
}
