// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("want nil, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if d := time.Since(start); d > time.Second {
		t.Fatalf("canceled sleep took %s", d)
	}
}

func TestRetryTimeout(t *testing.T) {
	count := 0
	f := func() error {
		if count++; count < 3 {
			return errors.New("not yet")
		}
		return nil
	}
	if err := RetryTimeout(context.Background(), time.Millisecond, time.Second, f); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("want 3 attempts, got %d", count)
	}

	failure := errors.New("always")
	if err := RetryTimeout(context.Background(), time.Millisecond, 20*time.Millisecond, func() error { return failure }); !errors.Is(err, failure) {
		t.Fatalf("want %v, got %v", failure, err)
	}
}

func TestDetach(t *testing.T) {
	parent, pcancel := context.WithCancel(context.Background())

	ctx, cancel := Detach(parent, 50*time.Millisecond)
	defer cancel()

	pcancel()
	if err := ctx.Err(); err != nil {
		t.Fatalf("detached context must survive parent cancellation: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("detached context was not canceled after the grace period")
	}
	if err := context.Cause(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("want cause wrapping context.Canceled, got %v", err)
	}
}

func TestDetachCancel(t *testing.T) {
	ctx, cancel := Detach(context.Background(), time.Hour)
	cancel()
	if err := ctx.Err(); err == nil {
		t.Fatalf("want canceled context")
	}
}
