// Copyright (c) 2023 BVK Chaitanya

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/bvk/candlebot/ratelimit"
)

type statusError int

func (v statusError) Error() string {
	return fmt.Sprintf("http status %d", int(v))
}

func (v statusError) HTTPStatus() int {
	return int(v)
}

func newTestExecutor(backoff time.Duration) *Executor {
	public := ratelimit.New("public", &ratelimit.Options{MaxRPS: ratelimit.PublicRPS})
	private := ratelimit.New("private", &ratelimit.Options{MaxRPS: ratelimit.PrivateRPS})
	return New(public, private, &Options{ThrottleBackoff: backoff})
}

func TestThrottleRetry(t *testing.T) {
	const backoff = 100 * time.Millisecond
	e := newTestExecutor(backoff)

	var calls []time.Time
	fn := func(ctx context.Context) (string, error) {
		calls = append(calls, time.Now())
		if len(calls) <= 3 {
			return "", statusError(http.StatusTooManyRequests)
		}
		return "done", nil
	}

	v, err := Call(context.Background(), e, ratelimit.Public, fn)
	if err != nil {
		t.Fatal(err)
	}
	if v != "done" {
		t.Fatalf("want done, got %q", v)
	}
	if len(calls) != 4 {
		t.Fatalf("want 4 calls (3 throttled + 1 success), got %d", len(calls))
	}
	for i := 1; i < len(calls); i++ {
		if d := calls[i].Sub(calls[i-1]); d < backoff {
			t.Fatalf("retry %d happened after %s (< backoff %s)", i, d, backoff)
		}
	}
	if n := e.Throttled(); n != 3 {
		t.Fatalf("want 3 throttled responses, got %d", n)
	}
}

func TestThrottleMessage(t *testing.T) {
	e := newTestExecutor(time.Millisecond)

	attempts := 0
	err := e.Do(context.Background(), ratelimit.Public, func(ctx context.Context) error {
		if attempts++; attempts == 1 {
			return errors.New("Too many errors")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Fatalf("want 2 attempts, got %d", attempts)
	}
}

func TestNonThrottleError(t *testing.T) {
	e := newTestExecutor(time.Millisecond)

	failure := statusError(http.StatusNotFound)
	attempts := 0
	err := e.Do(context.Background(), ratelimit.Private, func(ctx context.Context) error {
		attempts++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("want the original error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("non-throttle errors must not be retried; got %d attempts", attempts)
	}
}

func TestCanceledDuringBackoff(t *testing.T) {
	e := newTestExecutor(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := e.Do(ctx, ratelimit.Public, func(ctx context.Context) error {
		return statusError(http.StatusTooManyRequests)
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestUnknownClass(t *testing.T) {
	e := newTestExecutor(time.Millisecond)
	if err := e.Do(context.Background(), ratelimit.Class(7), func(context.Context) error { return nil }); err == nil {
		t.Fatalf("want error for unknown endpoint class")
	}
}

func TestIsThrottled(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{statusError(http.StatusTooManyRequests), true},
		{fmt.Errorf("wrapped: %w", statusError(http.StatusTooManyRequests)), true},
		{statusError(http.StatusBadGateway), false},
		{errors.New("http GET returned 429"), true},
		{errors.New("Too many errors"), true},
		{errors.New("unexpected status 429"), true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("read 1429 bytes"), false},
		{timestampedURLError(), false},
		{fmt.Errorf("could not fetch candles: %w", timestampedURLError()), false},
	}
	for i, test := range tests {
		if got := IsThrottled(test.err); got != test.want {
			t.Errorf("%d: IsThrottled(%v): want %v, got %v", i, test.err, test.want, got)
		}
	}
}

func timestampedURLError() error {
	return &url.Error{
		Op:  "Get",
		URL: "https://api.coinbase.com/api/v3/brokerage/products/BTC-USD/candles?end=1760429100&granularity=FIVE_MINUTE&start=1760428200",
		Err: context.DeadlineExceeded,
	}
}

func TestTransportErrorNotRetried(t *testing.T) {
	e := newTestExecutor(time.Millisecond)

	attempts := 0
	err := e.Do(context.Background(), ratelimit.Public, func(ctx context.Context) error {
		attempts++
		return timestampedURLError()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("transport errors must not be retried; got %d attempts", attempts)
	}
	if n := e.Throttled(); n != 0 {
		t.Fatalf("want no throttled responses, got %d", n)
	}
}
