// Package datasource defines where raw input bytes come from. The pipeline
// only needs a way to open a fresh stream; the file subpackage provides the
// local-disk implementation.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw input stream. The caller closes the returned reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
