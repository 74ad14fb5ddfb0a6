package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_Empty(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	assert.Nil(t, Process[int](context.Background(), pool, nil, nil))
}

func TestProcess_BoundsConcurrency(t *testing.T) {
	pool := New(Config{Name: "test", MaxConcurrent: 3}, zap.NewNop())

	var inFlight, peak atomic.Int32
	items := make([]Item[int], 12)
	for i := range items {
		i := i
		items[i] = Item[int]{
			ID: fmt.Sprintf("item-%d", i),
			Execute: func(ctx context.Context) (int, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return i * 2, nil
			},
		}
	}

	var progress atomic.Int32
	results := Process(context.Background(), pool, items, func(completed, total int) {
		progress.Store(int32(completed))
		assert.Equal(t, 12, total)
	})

	require.Len(t, results, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, int32(12), progress.Load())

	sum := 0
	for _, r := range results {
		require.NoError(t, r.Err)
		sum += r.Result
	}
	assert.Equal(t, 132, sum)
}

func TestProcess_ItemErrorsAndPanics(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	items := []Item[string]{
		{ID: "ok", Execute: func(ctx context.Context) (string, error) { return "fine", nil }},
		{ID: "err", Execute: func(ctx context.Context) (string, error) { return "", errors.New("db down") }},
		{ID: "panic", Execute: func(ctx context.Context) (string, error) { panic("nil map") }},
	}

	byID := map[string]Result[string]{}
	for _, r := range Process(context.Background(), pool, items, nil) {
		byID[r.ID] = r
	}

	require.Len(t, byID, 3)
	assert.Equal(t, "fine", byID["ok"].Result)
	assert.EqualError(t, byID["err"].Err, "db down")
	require.Error(t, byID["panic"].Err)
	assert.Contains(t, byID["panic"].Err.Error(), "panicked")
}

func TestProcess_CancelledContext(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []Item[int]{
		{ID: "a", Execute: func(ctx context.Context) (int, error) { return 1, ctx.Err() }},
		{ID: "b", Execute: func(ctx context.Context) (int, error) { return 2, ctx.Err() }},
	}
	for _, r := range Process(ctx, pool, items, nil) {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestSequential(t *testing.T) {
	var order []string
	items := []Item[int]{
		{ID: "first", Execute: func(ctx context.Context) (int, error) { order = append(order, "first"); return 1, nil }},
		{ID: "second", Execute: func(ctx context.Context) (int, error) { panic("boom") }},
		{ID: "third", Execute: func(ctx context.Context) (int, error) { order = append(order, "third"); return 3, nil }},
	}

	results, err := Sequential(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"first", "third"}, order)
	assert.Error(t, results[1].Err)
	assert.Equal(t, 3, results[2].Result)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Sequential(ctx, items)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(1)
	assert.Equal(t, 1, l.Cap())
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.DeadlineExceeded)

	l.Release()
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()

	assert.Equal(t, 1, NewLimiter(0).Cap())
}
