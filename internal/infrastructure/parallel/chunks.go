// Package parallel splits index ranges into chunks and runs them on a
// bounded pool of goroutines.
package parallel

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

// ChunkFunc handles the half-open range [start, end).
type ChunkFunc func(ctx context.Context, start, end int) error

// ChunkStats reports what a run did.
type ChunkStats struct {
	Chunks  int
	Workers int
	Done    int
}

type options struct {
	workers   int
	chunkSize int
	progress  func(done, total int)
}

// Option configures ForEachChunk.
type Option func(*options)

// WithWorkers bounds the number of concurrent chunks.  Zero or less means
// runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithChunkSize sets the number of indices handed to each ChunkFunc call.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithProgress registers a callback invoked after every completed chunk.
// It may be called from several goroutines at once.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) { o.progress = fn }
}

const defaultChunkSize = 65536

// Chunks returns the number of chunks n indices are split into.
func Chunks(n, chunkSize int) int {
	if n <= 0 {
		return 0
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return (n + chunkSize - 1) / chunkSize
}

// ForEachChunk calls fn for consecutive chunks covering [0, n).  The first
// error cancels the context passed to the remaining calls and is returned;
// chunks not yet started are skipped.
func ForEachChunk(ctx context.Context, n int, fn ChunkFunc, opts ...Option) (ChunkStats, error) {
	o := options{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunkSize <= 0 {
		return ChunkStats{}, errors.InvalidParam("chunk size must be positive")
	}
	if o.workers <= 0 {
		o.workers = runtime.NumCPU()
	}

	total := Chunks(n, o.chunkSize)
	workers := o.workers
	if workers > total {
		workers = total
	}
	stats := ChunkStats{Chunks: total, Workers: workers}
	if total == 0 {
		return stats, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	for start := 0; start < n; start += o.chunkSize {
		if gctx.Err() != nil {
			break
		}
		start, end := start, min(start+o.chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, start, end); err != nil {
				return err
			}
			d := int(done.Add(1))
			if o.progress != nil {
				o.progress(d, total)
			}
			return nil
		})
	}

	err := g.Wait()
	stats.Done = int(done.Load())
	if err == nil {
		err = ctx.Err()
	}
	if err != nil && errors.Is(err, context.Canceled) {
		return stats, errors.Wrap(err, errors.CodeCancelled, "decomposition cancelled")
	}
	return stats, err
}
