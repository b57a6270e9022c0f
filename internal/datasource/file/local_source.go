// Package file implements a local filesystem-backed data source and small
// helpers for reading line-based list files.
package file

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies how the input bytes are encoded.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Local is a filesystem data source that opens files from the local disk.
// Gzip and zstd inputs are detected from their magic bytes and decompressed
// transparently, whatever the file name.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Size returns the on-disk (compressed) size of the input.
func (l *Local) Size() (int64, error) {
	fi, err := os.Stat(l.path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", l.path, err)
	}
	return fi.Size(), nil
}

// Open opens the configured path for reading.
//
// Behavior:
//   - If the context is already done, Open returns the context error without
//     touching the filesystem.
//   - The file is advised for sequential access where the OS supports it.
//   - Any filesystem error is wrapped with the path while still permitting
//     errors.Is checks (e.g., errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, _, err := l.OpenDetect(ctx)
	return rc, err
}

// OpenDetect is Open plus the detected compression.
func (l *Local) OpenDetect(ctx context.Context) (io.ReadCloser, Compression, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", l.path, err)
	}
	adviseSequential(f)

	br := bufio.NewReaderSize(f, 1<<20)
	head, _ := br.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, "", fmt.Errorf("gzip %s: %w", l.path, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, f}}, CompressionGzip, nil
	case bytes.HasPrefix(head, zstdMagic):
		// The chunk reader is the only consumer, so decode in place
		// instead of on background goroutines.
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, "", fmt.Errorf("zstd %s: %w", l.path, err)
		}
		rc := dec.IOReadCloser()
		return &stackedCloser{Reader: rc, closers: []io.Closer{rc, f}}, CompressionZstd, nil
	}
	return &stackedCloser{Reader: br, closers: []io.Closer{f}}, CompressionNone, nil
}

// stackedCloser closes decoders before the file they read from.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
