package common

import (
	"context"

	"golang.org/x/sync/errgroup"
)

func IsEqual[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}

	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

// AsyncMap runs mapFunc for every payload element concurrently and returns
// results in payload order. The first error cancels ctx for the remaining
// calls and is returned once all of them are done.
func AsyncMap[T, P any](
	ctx context.Context,
	payload []T,
	mapFunc func(ctx context.Context, value T) (P, error),
) ([]P, error) {
	res := make([]P, len(payload))
	if len(payload) == 0 {
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, value := range payload {
		i, value := i, value
		g.Go(func() error {
			v, err := mapFunc(gctx, value)
			if err != nil {
				return err
			}
			res[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}

	return res, nil
}
