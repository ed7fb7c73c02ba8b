// SPDX-License-Identifier: MPL-2.0

// Package workpool runs independent tasks on a bounded number of goroutines.
//
// A Pool only carries a size; every call creates fresh state, so a Pool can be
// shared freely between concurrent builds and verifications. Submission blocks
// once the pool is saturated, which keeps the number of open file handles and
// buffered archive members bounded.
package workpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool is a bounded worker pool.
type Pool struct {
	size int
}

// DefaultSize returns the worker count used for the given number of CPUs:
// one less than the CPU count, but at least one.
func DefaultSize(cpus int) int {
	return max(1, cpus-1)
}

// New returns a pool running at most size tasks at once.
// Non-positive sizes are clamped to one.
func New(size int) *Pool {
	return &Pool{size: max(1, size)}
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return p.size
}

// Group returns an errgroup limited to the pool size. Go blocks while the limit
// is reached. The returned context is canceled as soon as a task fails, and
// Wait returns the first error.
func (p *Pool) Group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	return g, gctx
}

// Map applies fn to every input on the pool and returns the outputs in input
// order. Each task writes only its own pre-allocated slot. On the first error
// the remaining tasks are skipped and the error is returned; partial results
// are discarded.
func Map[In, Out any](ctx context.Context, p *Pool, inputs []In, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	outputs := make([]Out, len(inputs))
	g, gctx := p.Group(ctx)
	for i, in := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := fn(gctx, in)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outputs, nil
}
