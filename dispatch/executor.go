// Copyright (c) 2023 BVK Chaitanya

// Package dispatch implements the single choke point for all outbound
// exchange requests. Every request is admitted by the rate limiter of its
// endpoint class and is re-issued, after a fixed backoff, for as long as the
// exchange keeps reporting throttling.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/bvk/candlebot/ctxutil"
	"github.com/bvk/candlebot/ratelimit"
)

type Executor struct {
	opts Options

	limiters map[ratelimit.Class]*ratelimit.Limiter

	numCalls     atomic.Int64
	numThrottled atomic.Int64
}

// New creates an executor with the limiters for public and private endpoint
// classes.
func New(public, private *ratelimit.Limiter, opts *Options) *Executor {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()

	return &Executor{
		opts: v,
		limiters: map[ratelimit.Class]*ratelimit.Limiter{
			ratelimit.Public:  public,
			ratelimit.Private: private,
		},
	}
}

// Do runs the input function with a permit from the limiter of the input
// class. Throttled calls are retried without a limit on the number of
// attempts; all other errors are returned as is.
func (e *Executor) Do(ctx context.Context, class ratelimit.Class, fn func(context.Context) error) error {
	limiter, ok := e.limiters[class]
	if !ok || limiter == nil {
		return fmt.Errorf("no limiter for endpoint class %s: %w", class, os.ErrInvalid)
	}

	for attempt := 1; ; attempt++ {
		permit, err := limiter.Admit(ctx)
		if err != nil {
			return err
		}
		e.numCalls.Add(1)
		err = fn(ctx)
		permit.Release()

		if err == nil {
			return nil
		}
		if !IsThrottled(err) {
			return err
		}

		e.numThrottled.Add(1)
		slog.Warn("request is throttled by the exchange (retrying after backoff)", "class", class, "attempt", attempt, "backoff", e.opts.ThrottleBackoff, "err", err)
		if err := ctxutil.Sleep(ctx, e.opts.ThrottleBackoff); err != nil {
			return err
		}
	}
}

// Call is a generic form of Executor.Do for functions that return a value.
func Call[T any](ctx context.Context, e *Executor, class ratelimit.Class, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, class, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// Calls returns the number of times a request function was invoked,
// including the retries.
func (e *Executor) Calls() int64 {
	return e.numCalls.Load()
}

// Throttled returns the number of throttled responses seen so far.
func (e *Executor) Throttled() int64 {
	return e.numThrottled.Load()
}

// statusCoder is implemented by errors that carry an HTTP status code.
type statusCoder interface {
	HTTPStatus() int
}

// IsThrottled returns true if the error indicates that exchange has rejected
// a request for exceeding its rate limits.
func IsThrottled(err error) bool {
	if err == nil {
		return false
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() == http.StatusTooManyRequests
	}
	// Transport errors embed the request url, whose query values can contain
	// any digit sequence.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Too many errors") || throttleStatusRe.MatchString(msg)
}

var throttleStatusRe = regexp.MustCompile(`\b(?:status|returned|code)[ :=]*429\b|\b429 Too Many Requests\b`)
