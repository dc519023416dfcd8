package services

import (
	"context"
	"time"
)

// firstOf races an operation against a deadline. Losing the race cancels
// the caller's wait; the in-flight operation only sees its context
// cancelled (best-effort cancellation). If it later completes anyway, its
// result is discarded because the caller has already proceeded down the
// fallback path.
func firstOf[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	// Buffered so a late completion doesn't leak the goroutine.
	done := make(chan outcome, 1)
	go func() {
		v, err := op(opCtx)
		done <- outcome{v, err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-opCtx.Done():
		var zero T
		return zero, opCtx.Err()
	}
}
