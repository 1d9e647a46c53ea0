// Copyright (c) 2023 BVK Chaitanya

// Package ratelimit implements admission control for one class of exchange
// endpoints.
//
// A Limiter bounds both the number of requests in flight and the number of
// requests admitted in any trailing window (one second by default). Callers
// first wait for a concurrency slot and then, holding the slot, wait for
// room in the sliding window. Waits for the two bounds can add up under heavy
// fan-out; neither bound is ever exceeded.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bvk/candlebot/ctxutil"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type Limiter struct {
	name string

	opts Options

	slots *semaphore.Weighted

	mu sync.Mutex

	// window holds admission timestamps in ascending order. Timestamps older
	// than opts.Window are purged lazily before each admission check.
	window []time.Time

	numAdmitted atomic.Int64
	numWaited   atomic.Int64

	logWait rate.Sometimes
}

// Permit represents one admitted request. Permit must be released after the
// request completes.
type Permit struct {
	limiter    *Limiter
	admittedAt time.Time
	released   atomic.Bool
}

type Stats struct {
	Admitted int64
	Waited   int64
	InWindow int
}

// New creates a limiter. Name is only used in log messages. Panics if the
// options are invalid.
func New(name string, opts *Options) *Limiter {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()
	if err := v.Check(); err != nil {
		panic(err)
	}
	return &Limiter{
		name:    name,
		opts:    v,
		slots:   semaphore.NewWeighted(int64(v.MaxConcurrent)),
		window:  make([]time.Time, 0, v.MaxRPS),
		logWait: rate.Sometimes{Interval: time.Second},
	}
}

func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) MaxRPS() int {
	return l.opts.MaxRPS
}

// Admit blocks the caller till a request can be sent without exceeding the
// concurrency or the rate limits. Returns the context cause if input context
// is canceled before the admission.
func (l *Limiter) Admit(ctx context.Context) (*Permit, error) {
	if err := l.slots.Acquire(ctx, 1); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return nil, cause
		}
		return nil, err
	}
	at, err := l.reserve(ctx)
	if err != nil {
		l.slots.Release(1)
		return nil, err
	}
	l.numAdmitted.Add(1)
	return &Permit{limiter: l, admittedAt: at}, nil
}

func (l *Limiter) reserve(ctx context.Context) (time.Time, error) {
	for {
		l.mu.Lock()
		now := time.Now()
		l.purgeLocked(now)
		if len(l.window) < l.opts.MaxRPS {
			l.window = append(l.window, now)
			l.mu.Unlock()
			return now, nil
		}
		wait := l.opts.Window - now.Sub(l.window[0])
		l.mu.Unlock()

		l.numWaited.Add(1)
		l.logWait.Do(func() {
			slog.Debug("rate limit reached; waiting", "limiter", l.name, "wait", wait)
		})
		// Other waiters may take the freed room first, so window is checked
		// again after the sleep.
		if err := ctxutil.Sleep(ctx, wait); err != nil {
			return time.Time{}, err
		}
	}
}

func (l *Limiter) purgeLocked(now time.Time) {
	n := 0
	for n < len(l.window) && now.Sub(l.window[n]) >= l.opts.Window {
		n++
	}
	if n > 0 {
		l.window = append(l.window[:0], l.window[n:]...)
	}
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	l.purgeLocked(time.Now())
	inWindow := len(l.window)
	l.mu.Unlock()

	return Stats{
		Admitted: l.numAdmitted.Load(),
		Waited:   l.numWaited.Load(),
		InWindow: inWindow,
	}
}

// AdmittedAt returns the timestamp recorded in the limiter's window for this
// permit.
func (p *Permit) AdmittedAt() time.Time {
	return p.admittedAt
}

// Release frees the concurrency slot held by the permit. Extra calls are
// ignored.
func (p *Permit) Release() {
	if p.released.CompareAndSwap(false, true) {
		p.limiter.slots.Release(1)
	}
}
