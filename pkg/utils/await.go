package utils

import "context"

// Await runs fn in its own goroutine and returns its result, or ctx.Err()
// as soon as ctx is done. A collaborator that ignores ctx is abandoned: its
// eventual result is discarded.
func Await[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	ch := make(chan result, 1)
	go func() {
		val, err := fn(ctx)
		ch <- result{val: val, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
