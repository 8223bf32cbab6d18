// Package shard splits index ranges across a bounded number of goroutines.
// Used by the per-order pipeline stages, which never read another order's
// state, so contiguous ranges need no coordination beyond the final Wait.
package shard

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Range is a half-open index interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

// Split divides n items into at most workers contiguous, near-equal ranges.
// Returns nil for n == 0.
func Split(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	ranges := make([]Range, 0, workers)
	size, rem := n/workers, n%workers
	lo := 0
	for i := 0; i < workers; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		ranges = append(ranges, Range{Lo: lo, Hi: hi})
		lo = hi
	}
	return ranges
}

// Each runs fn once per range concurrently and returns the first error.
// fn should check ctx between items for long ranges.
func Each(ctx context.Context, n, workers int, fn func(ctx context.Context, r Range) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range Split(n, workers) {
		g.Go(func() error {
			return fn(ctx, r)
		})
	}
	return g.Wait()
}
