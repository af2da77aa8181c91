// Package parallel runs independent loop iterations on a pool of goroutines.
package parallel

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"
)

// For calls body for every i in [0, n) using up to workers goroutines.
// If workers <= 0, runtime.GOMAXPROCS(0) is used.
//
// Workers claim indices one by one from a shared counter, so uneven
// iterations balance themselves. The first error returned by body cancels
// the context passed to the remaining iterations and is returned by For.
// Iterations that have not started when ctx is done are skipped.
func For[I constraints.Integer](ctx context.Context, n I, workers int, body func(ctx context.Context, i I) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if uint64(workers) > uint64(n) {
		workers = int(n)
	}

	g, ctx := errgroup.WithContext(ctx)
	var next atomic.Uint64
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := next.Add(1) - 1
				if i >= uint64(n) {
					return nil
				}
				if err := body(ctx, I(i)); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
