// Package testutil holds helpers shared by kycproxy tests.
package testutil

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"kycproxy/pkg/platform/sentinel"
)

// Outcome tallies a concurrent run. Conflicts counts errors matching
// sentinel.ErrConflict; every other error lands in Errors and the first one
// is kept for assertion messages.
type Outcome struct {
	Successes int
	Conflicts int
	Errors    int
	FirstErr  error
}

func (o Outcome) Total() int { return o.Successes + o.Conflicts + o.Errors }

// RunConcurrent starts n goroutines, releases them together so they contend,
// and waits for all of them.
func RunConcurrent(n int, fn func(i int) error) Outcome {
	var (
		mu    sync.Mutex
		out   Outcome
		start = make(chan struct{})
		g     errgroup.Group
	)
	for i := range n {
		g.Go(func() error {
			<-start
			err := fn(i)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				out.Successes++
			case errors.Is(err, sentinel.ErrConflict):
				out.Conflicts++
			default:
				out.Errors++
				if out.FirstErr == nil {
					out.FirstErr = err
				}
			}
			return nil
		})
	}
	close(start)
	_ = g.Wait()
	return out
}

// RunConcurrentCtx is RunConcurrent with a shared context.
func RunConcurrentCtx(ctx context.Context, n int, fn func(ctx context.Context, i int) error) Outcome {
	return RunConcurrent(n, func(i int) error { return fn(ctx, i) })
}
