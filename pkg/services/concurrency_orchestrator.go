package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-health/pkg/workerpool"
)

// dispatchFunc runs a phase's items in parallel. workerpool.Process is the
// production implementation; tests substitute failing dispatchers.
type dispatchFunc[T any] func(
	ctx context.Context,
	pool *workerpool.Pool,
	items []workerpool.Item[T],
	onProgress func(completed, total int),
) []workerpool.Result[T]

// phaseResult is the outcome of one phase keyed by item ID.
type phaseResult[T any] struct {
	Results            map[string]workerpool.Result[T]
	SequentialFallback bool
}

// runPhase runs items through dispatch. Item failures stay in their result.
// If the dispatch itself fails (panics or loses items) the whole phase is
// re-run sequentially; only a context error from that run is returned.
func runPhase[T any](
	ctx context.Context,
	phase string,
	pool *workerpool.Pool,
	items []workerpool.Item[T],
	dispatch dispatchFunc[T],
	logger *zap.Logger,
) (*phaseResult[T], error) {
	out := &phaseResult[T]{Results: make(map[string]workerpool.Result[T], len(items))}
	if len(items) == 0 {
		return out, nil
	}

	results, err := safeDispatch(ctx, pool, items, dispatch)
	if err == nil {
		err = checkComplete(items, results)
	}
	if err == nil {
		for _, r := range results {
			out.Results[r.ID] = r
		}
		return out, nil
	}

	logger.Error("Parallel phase failed, retrying sequentially",
		zap.String("phase", phase),
		zap.Int("items", len(items)),
		zap.Error(err))

	results, seqErr := workerpool.Sequential(ctx, items)
	if seqErr != nil {
		return nil, fmt.Errorf("%s: sequential fallback: %w", phase, seqErr)
	}
	for _, r := range results {
		out.Results[r.ID] = r
	}
	out.SequentialFallback = true
	return out, nil
}

func safeDispatch[T any](
	ctx context.Context,
	pool *workerpool.Pool,
	items []workerpool.Item[T],
	dispatch dispatchFunc[T],
) (results []workerpool.Result[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("dispatch panicked: %v", r)
		}
	}()
	return dispatch(ctx, pool, items, nil), nil
}

// checkComplete verifies every submitted item produced exactly one result.
func checkComplete[T any](items []workerpool.Item[T], results []workerpool.Result[T]) error {
	if len(results) != len(items) {
		return fmt.Errorf("dispatch returned %d results for %d items", len(results), len(items))
	}
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.ID] = true
	}
	for _, item := range items {
		if !seen[item.ID] {
			return fmt.Errorf("dispatch lost item %s", item.ID)
		}
	}
	return nil
}
