package resilience

import (
	"context"
	"fmt"
	"time"
)

// Call runs fn with a deadline of timeout and returns its result. An overrun
// yields an error wrapping context.DeadlineExceeded; fn keeps running until
// it notices its context and its late result is dropped. timeout <= 0 runs
// fn inline.
func Call[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := fn(callCtx)
		done <- outcome{val, err}
	}()

	var zero T
	select {
	case out := <-done:
		return out.val, out.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: cancelled: %w", name, ctx.Err())
		}
		return zero, fmt.Errorf("%s: %w after %v", name, context.DeadlineExceeded, timeout)
	}
}
