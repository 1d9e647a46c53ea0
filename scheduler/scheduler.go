// Copyright (c) 2023 BVK Chaitanya

// Package scheduler runs collection cycles back to back with a fixed pause
// between the end of one cycle and the start of the next.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bvk/candlebot/collector"
	"github.com/bvk/candlebot/ctxutil"
)

const (
	DefaultInterval        = 300 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// CycleRunner runs one collection cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) *collector.CycleResult
}

type Options struct {
	// Interval is the pause between the end of a cycle and the start of the
	// next cycle.
	Interval time.Duration

	// ShutdownTimeout is the time an in-flight cycle is allowed to run after
	// the scheduler is canceled.
	ShutdownTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.Interval == 0 {
		v.Interval = DefaultInterval
	}
	if v.ShutdownTimeout == 0 {
		v.ShutdownTimeout = DefaultShutdownTimeout
	}
}

type Scheduler struct {
	opts Options

	runner CycleRunner

	numCycles atomic.Int64
}

func New(runner CycleRunner, opts *Options) *Scheduler {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()

	return &Scheduler{
		opts:   v,
		runner: runner,
	}
}

// Cycles returns the number of completed cycles.
func (s *Scheduler) Cycles() int64 {
	return s.numCycles.Load()
}

// Run runs a cycle immediately and then repeats it after every Interval
// until the context is canceled. Cycles never overlap. Returns the context
// cause after the in-flight cycle, if any, is finished or abandoned.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := context.Cause(ctx); err != nil {
			return err
		}

		s.runCycle(ctx)

		if err := context.Cause(ctx); err != nil {
			return err
		}
		slog.Info("waiting for the next collection cycle", "interval", s.opts.Interval)
		if err := ctxutil.Sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	cctx, cancel := ctxutil.Detach(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	result := s.runner.RunCycle(cctx)
	n := s.numCycles.Add(1)

	if err := context.Cause(cctx); err != nil {
		slog.Warn("collection cycle was abandoned", "cycle", result.ID, "count", n, "err", err)
		return
	}
	slog.Info("collection cycle finished", "cycle", result.ID, "count", n, "succeeded", result.NumSucceeded(), "failed", result.NumFailed(), "duration", result.Duration())
}
