// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"fmt"
	"time"
)

// Sleep blocks the caller for given timeout duration. Returns early with the
// context cause if the input context is canceled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return context.Cause(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-timer.C:
		return nil
	}
}

// Retry runs the input function till it succeeds or till the input context is
// canceled. Returns nil if the input function is successful or last non-nil
// error from the function after the context has expired.
func Retry(ctx context.Context, interval time.Duration, f func() error) (err error) {
	for err = f(); err != nil && context.Cause(ctx) == nil; err = f() {
		Sleep(ctx, interval)
	}
	return
}

// RetryTimeout is like Retry, but gives up after the input timeout.
func RetryTimeout(ctx context.Context, interval, timeout time.Duration, f func() error) error {
	sctx, scancel := context.WithTimeout(ctx, timeout)
	defer scancel()
	return Retry(sctx, interval, f)
}

// Detach returns a context that survives the cancellation of parent for up to
// grace duration. Values of the parent are retained. Returned context is
// canceled when grace duration expires after the parent is done or when the
// returned cancel function is called, whichever happens first.
func Detach(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		if err := Sleep(ctx, grace); err == nil {
			cancel(fmt.Errorf("abandoned after %s grace: %w", grace, context.Cause(parent)))
		}
	})
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
