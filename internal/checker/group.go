package checker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Starter is a check that acquires its device on Start.
type Starter interface {
	Start(ctx context.Context) error
}

// StartAll starts every check concurrently and waits for all of them. One
// failing acquisition does not cancel the others; the first error is
// returned.
func StartAll(ctx context.Context, checks ...Starter) error {
	var g errgroup.Group
	for _, c := range checks {
		g.Go(func() error {
			return c.Start(ctx)
		})
	}
	return g.Wait()
}
