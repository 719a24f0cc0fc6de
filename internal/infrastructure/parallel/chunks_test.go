package parallel

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

func TestChunks(t *testing.T) {
	assert.Equal(t, 0, Chunks(0, 10))
	assert.Equal(t, 1, Chunks(10, 10))
	assert.Equal(t, 2, Chunks(11, 10))
	assert.Equal(t, 1, Chunks(5, 0))
}

func TestForEachChunk_CoversRange(t *testing.T) {
	var (
		mu     sync.Mutex
		ranges [][2]int
	)
	stats, err := ForEachChunk(context.Background(), 25, func(_ context.Context, start, end int) error {
		mu.Lock()
		ranges = append(ranges, [2]int{start, end})
		mu.Unlock()
		return nil
	}, WithWorkers(3), WithChunkSize(10))
	require.NoError(t, err)

	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })
	assert.Equal(t, [][2]int{{0, 10}, {10, 20}, {20, 25}}, ranges)
	assert.Equal(t, ChunkStats{Chunks: 3, Workers: 3, Done: 3}, stats)
}

func TestForEachChunk_ConcurrencyLimit(t *testing.T) {
	var active, peak int32
	_, err := ForEachChunk(context.Background(), 100, func(context.Context, int, int) error {
		cur := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return nil
	}, WithWorkers(2), WithChunkSize(5))
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestForEachChunk_FirstErrorWins(t *testing.T) {
	boom := errors.New(errors.CodeInvalidCenter, "bad centre")
	stats, err := ForEachChunk(context.Background(), 50, func(_ context.Context, start, _ int) error {
		if start == 0 {
			return boom
		}
		return nil
	}, WithWorkers(1), WithChunkSize(10))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidCenter))
	assert.Less(t, stats.Done, stats.Chunks)
}

func TestForEachChunk_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := ForEachChunk(ctx, 10, func(context.Context, int, int) error {
		called = true
		return nil
	}, WithChunkSize(1))
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, errors.IsCode(err, errors.CodeCancelled))
	assert.True(t, stderrors.Is(err, context.Canceled))
}

func TestForEachChunk_Progress(t *testing.T) {
	var calls atomic.Int32
	_, err := ForEachChunk(context.Background(), 9, func(context.Context, int, int) error { return nil },
		WithChunkSize(3), WithWorkers(2), WithProgress(func(done, total int) {
			calls.Add(1)
			assert.Equal(t, 3, total)
			assert.LessOrEqual(t, done, total)
		}))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestForEachChunk_InvalidChunkSize(t *testing.T) {
	_, err := ForEachChunk(context.Background(), 1, func(context.Context, int, int) error { return nil }, WithChunkSize(0))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestForEachChunk_Empty(t *testing.T) {
	stats, err := ForEachChunk(context.Background(), 0, func(context.Context, int, int) error {
		t.Fatal("unexpected call")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
}
