package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// CopyBatches splits rows into batches of at most batchSize and calls copyFn
// for each, in order. It returns the total reported by copyFn and stops at
// the first error. Cancellation is checked between batches.
//
// A progress line is logged per batch when verbose is set.
func CopyBatches(
	ctx context.Context,
	columns []string,
	rows [][]any,
	batchSize int,
	verbose bool,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total   int64
		batches int
		start   = time.Now()
	)
	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+batchSize, len(rows))
		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Printf("loader: copy failed batch=%d after=%d total=%d err=%v", batches+1, n, total, err)
			return total, err
		}
		batches++
		if verbose {
			elapsed := time.Since(start)
			rps := float64(0)
			if elapsed > 0 {
				rps = float64(total) / elapsed.Seconds()
			}
			log.Printf("loader: batch=%d inserted=%s total=%s rps=%.0f elapsed=%s",
				batches, humanize.Comma(n), humanize.Comma(total), rps, elapsed.Truncate(time.Millisecond))
		}
	}
	return total, nil
}

// BatchSizeFor returns the largest batch that keeps rows*width placeholders
// within limit (at least 1). Backends that bind every value as a parameter
// use it to stay under driver limits.
func BatchSizeFor(width, limit, want int) int {
	if width <= 0 {
		return want
	}
	maxRows := max(limit/width, 1)
	if want <= 0 || want > maxRows {
		return maxRows
	}
	return want
}
