// Package archive reads zstd compressed NDJSON archives line by line and
// writes gzip compressed record files.
package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ErrDecode marks a compressed stream that cannot be decoded further.
var ErrDecode = errors.New("decompression failed")

const readBufSize = 256 * 1024

// Reader streams decoded lines out of a zstd archive.
// Memory use is bounded by the decoder window plus the longest line.
type Reader struct {
	path string
	f    *os.File
	dec  *zstd.Decoder
	br   *bufio.Reader

	line  []byte
	bytes int64
	err   error
	done  bool
}

// Open opens path for streaming decompression.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	r, err := NewReader(bufio.NewReaderSize(f, readBufSize))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	r.path = path
	r.f = f
	return r, nil
}

// NewReader wraps an already open compressed stream. Close does not close src.
func NewReader(src io.Reader) (*Reader, error) {
	dec, err := zstd.NewReader(src,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &Reader{
		dec: dec,
		br:  bufio.NewReaderSize(dec, readBufSize),
	}, nil
}

// Next advances to the next line. It returns false at the end of the
// archive or on the first decode error; check Err to tell them apart.
func (r *Reader) Next() bool {
	if r.err != nil || r.done {
		return false
	}

	r.line = r.line[:0]
	for {
		chunk, err := r.br.ReadSlice('\n')
		r.line = append(r.line, chunk...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			r.done = true
			if len(r.line) == 0 {
				return false
			}
			break
		}
		// partial line before the corruption is dropped
		r.line = r.line[:0]
		r.err = fmt.Errorf("%w: %s: %v", ErrDecode, r.path, err)
		return false
	}

	r.line = bytes.TrimSuffix(r.line, []byte("\n"))
	r.line = bytes.TrimSuffix(r.line, []byte("\r"))
	r.bytes += int64(len(r.line))
	return true
}

// Line returns the current line. The slice is reused by the next call to Next.
func (r *Reader) Line() []byte {
	return r.line
}

// Bytes returns the number of decoded line bytes read so far, newlines excluded.
func (r *Reader) Bytes() int64 {
	return r.bytes
}

// Err returns the decode error that stopped iteration, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the decoder and the underlying file.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
		r.dec = nil
	}
	if r.f != nil {
		err := r.f.Close()
		r.f = nil
		return err
	}
	return nil
}
