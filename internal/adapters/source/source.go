// Package source streams NDJSON corpus dumps, plain or zstd-compressed.
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const (
	// MaxWindow is the largest zstd window accepted; Pushshift archives use 2 GiB.
	MaxWindow = 1 << 31
	// MaxLineBytes bounds a single NDJSON record.
	MaxLineBytes = 16 << 20

	initialBuffer = 1 << 20
)

// ErrEmptyPath is returned by Open for an empty path.
var ErrEmptyPath = errors.New("source: empty path")

// Reader yields one NDJSON line per Scan. It satisfies ingest.Lines.
//
// A line longer than MaxLineBytes is drained from the stream and yielded as
// an empty record, so the caller counts it as malformed and reading
// continues with the next line.
type Reader struct {
	br        *bufio.Reader
	line      []byte
	maxLine   int
	oversized int
	err       error
	closers   []func() error
}

// Open opens path, decompressing when it ends in .zst or .zstd.
func Open(path string) (*Reader, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	r, err := NewReader(f, IsCompressed(path))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("source: %s: %w", path, err)
	}
	r.closers = append(r.closers, f.Close)
	return r, nil
}

// IsCompressed reports whether path names a zstd file.
func IsCompressed(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return true
	}
	return false
}

// NewReader wraps r. When compressed is true the stream is zstd-decoded with
// a window of up to MaxWindow bytes.
func NewReader(r io.Reader, compressed bool) (*Reader, error) {
	out := &Reader{}
	if compressed {
		dec, err := zstd.NewReader(r,
			zstd.WithDecoderMaxWindow(MaxWindow),
			zstd.WithDecoderConcurrency(1),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		out.closers = append(out.closers, func() error { dec.Close(); return nil })
		r = dec
	}
	out.br = bufio.NewReaderSize(r, initialBuffer)
	out.maxLine = MaxLineBytes
	return out, nil
}

// Scan advances to the next line. It returns false at the end of the stream
// or on a read error, which Err then reports.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	r.line = r.line[:0]
	var read, over bool
	for {
		chunk, err := r.br.ReadSlice('\n')
		read = read || len(chunk) > 0
		if !over {
			if len(r.line)+len(chunk) > r.maxLine+2 {
				over = true
				r.line = r.line[:0]
			} else {
				r.line = append(r.line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			r.err = err
			if !errors.Is(err, io.EOF) || !read {
				r.line = r.line[:0]
				return false
			}
		}
		break
	}
	r.line = bytes.TrimRight(r.line, "\r\n")
	if over || len(r.line) > r.maxLine {
		r.oversized++
		r.line = r.line[:0]
	}
	return true
}

// Bytes returns the current line. It is valid until the next Scan.
func (r *Reader) Bytes() []byte { return r.line }

// Text returns the current line as a string.
func (r *Reader) Text() string { return string(r.line) }

// Err returns the first read error other than io.EOF.
func (r *Reader) Err() error {
	if errors.Is(r.err, io.EOF) {
		return nil
	}
	return r.err
}

// Oversized returns how many lines were dropped for exceeding MaxLineBytes.
func (r *Reader) Oversized() int { return r.oversized }

// Close releases the decoder and the underlying file.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
