// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

// Package workerpool runs bounded-concurrency batches of work, offloading
// blocking file and object-store I/O to a fixed-size pool of goroutines.
// Built on golang.org/x/sync's errgroup and semaphore.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many goroutines may run concurrently for a batch of work.
type Pool struct {
	sem *semaphore.Weighted
}

// New returns a Pool that admits at most concurrency goroutines at once.
// concurrency <= 0 is treated as 1.
func New(concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(concurrency))}
}

// Run executes fn(i) for i in [0, n) with at most the pool's concurrency
// running at once, stopping at the first error and returning it. ctx
// cancellation aborts remaining and in-flight work's own ctx checks.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		if err := p.sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// RunBestEffort behaves like Run but never aborts early: every index runs
// regardless of other failures, and all errors are returned positionally
// aligned to the input range (nil where fn succeeded).
func (p *Pool) RunBestEffort(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		if err := p.sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
