// Package workerpool runs batches of independent work with bounded
// parallelism. Each phase of an assessment owns its own Pool so limits for
// model calls and database calls are tuned independently.
package workerpool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Config configures a Pool.
type Config struct {
	Name          string // Used as the logger name
	MaxConcurrent int    // Maximum in-flight items (default: 8)
}

// Pool manages concurrent execution with bounded parallelism. A semaphore
// limits outstanding items and results are collected as they complete.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a new pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 8
	}
	if config.Name == "" {
		config.Name = "worker-pool"
	}
	return &Pool{
		config: config,
		logger: logger.Named(config.Name),
	}
}

// MaxConcurrent returns the configured concurrency bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item represents a unit of work to be processed.
type Item[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// Result represents the outcome of an Item.
type Result[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items with bounded parallelism and returns results in
// completion order. A panicking item is reported as that item's error; the
// rest of the batch keeps running.
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []Item[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], 0, len(items))
	resultsChan := make(chan Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(item Item[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				var zero T
				resultsChan <- Result[T]{ID: item.ID, Result: zero, Err: ctx.Err()}
				return
			}

			result, err := Run(ctx, item)
			if err != nil {
				pool.logger.Debug("work item failed", zap.String("id", item.ID), zap.Error(err))
			}
			resultsChan <- Result[T]{ID: item.ID, Result: result, Err: err}
		}(item)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	completed := 0
	for result := range resultsChan {
		results = append(results, result)
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	return results
}

// Sequential executes items one at a time in submission order. It stops and
// returns ctx.Err() if the context ends between items.
func Sequential[T any](ctx context.Context, items []Item[T]) ([]Result[T], error) {
	results := make([]Result[T], 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := Run(ctx, item)
		results = append(results, Result[T]{ID: item.ID, Result: result, Err: err})
	}
	return results, nil
}

// Run executes a single item, converting a panic into an error.
func Run[T any](ctx context.Context, item Item[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = fmt.Errorf("work item %s panicked: %v", item.ID, r)
		}
	}()
	return item.Execute(ctx)
}
