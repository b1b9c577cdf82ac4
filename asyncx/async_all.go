package asyncx

import (
	"context"
	"sync"
)

// All runs fn for every item concurrently and returns the results in input
// order. The first error cancels the context passed to the remaining calls.
func All[T any, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	return Limit(ctx, items, 0, fn)
}

// Limit is All with at most n calls in flight. n <= 0 means no limit.
func Limit[T any, R any](ctx context.Context, items []T, n int, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]R, len(items))

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)

	var sem chan struct{}
	if n > 0 {
		sem = make(chan struct{}, n)
	}

	for i, item := range items {
		if sem != nil {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				once.Do(func() { firstErr = ctx.Err() })
			}
			if ctx.Err() != nil {
				break
			}
		}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}

			result, err := fn(ctx, item)
			if err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			results[i] = result
		}(i, item)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
