// Copyright (c) 2023 BVK Chaitanya

// Package collector implements a single collection cycle: fetch the active
// products, fetch the latest candles for every product concurrently and
// write them to a sink. Failures are isolated per product and reported in
// the cycle result.
package collector

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bvk/candlebot/exchange"
	"github.com/google/uuid"
	"github.com/visvasity/topic"
	"golang.org/x/sync/errgroup"
)

// ProductSource provides the market data for a collection cycle.
type ProductSource interface {
	ListActiveProducts(ctx context.Context) []*exchange.Product
	LatestCandles(ctx context.Context, productID string) []*exchange.Candle
}

type Options struct {
	// MaxConcurrency limits the number of products processed in parallel. Zero
	// means one goroutine per product.
	MaxConcurrency int
}

type Collector struct {
	opts Options

	source ProductSource

	sink Sink

	last atomic.Pointer[CycleResult]

	results *topic.Topic[*CycleResult]
}

func New(source ProductSource, sink Sink, opts *Options) *Collector {
	if opts == nil {
		opts = new(Options)
	}
	return &Collector{
		opts:    *opts,
		source:  source,
		sink:    sink,
		results: topic.New[*CycleResult](),
	}
}

// Close closes the results topic.
func (c *Collector) Close() error {
	c.results.Close()
	return nil
}

// Results returns the topic where every finished cycle result is published.
func (c *Collector) Results() *topic.Topic[*CycleResult] {
	return c.results
}

// Last returns the result of the most recent cycle, or nil if no cycle has
// finished yet.
func (c *Collector) Last() *CycleResult {
	return c.last.Load()
}

// RunCycle runs one collection cycle. It returns only after every product
// task has finished.
func (c *Collector) RunCycle(ctx context.Context) *CycleResult {
	result := &CycleResult{
		ID:        uuid.New(),
		StartTime: time.Now(),
		Outcomes:  []ProductOutcome{},
	}
	defer c.finish(result)

	products := c.source.ListActiveProducts(ctx)
	result.NumProducts = len(products)
	if len(products) == 0 {
		slog.Warn("no active products found; ending the cycle", "cycle", result.ID)
		return result
	}

	outcomes := make([]ProductOutcome, len(products))

	var g errgroup.Group
	if c.opts.MaxConcurrency > 0 {
		g.SetLimit(c.opts.MaxConcurrency)
	}
	for i, p := range products {
		g.Go(func() error {
			outcomes[i] = c.collectProduct(ctx, result.ID, p)
			return nil
		})
	}
	g.Wait()

	slices.SortFunc(outcomes, func(a, b ProductOutcome) int {
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	result.Outcomes = outcomes
	return result
}

func (c *Collector) collectProduct(ctx context.Context, cycleID uuid.UUID, p *exchange.Product) (out ProductOutcome) {
	out.ProductID = p.ProductID

	defer func() {
		if r := recover(); r != nil {
			slog.Error("product task has panicked", "cycle", cycleID, "product", p.ProductID, "panic", r, "stack", string(debug.Stack()))
			out.Err = fmt.Sprintf("panic: %v", r)
		}
	}()

	candles := c.source.LatestCandles(ctx, p.ProductID)
	out.NumCandles = len(candles)
	if len(candles) == 0 {
		slog.Debug("no candles found for product", "cycle", cycleID, "product", p.ProductID)
		return out
	}

	if err := c.sink.WriteCandles(ctx, p.ProductID, candles); err != nil {
		slog.Warn("could not write candles to the sink", "cycle", cycleID, "product", p.ProductID, "candles", len(candles), "err", err)
		out.Err = err.Error()
		return out
	}
	return out
}

func (c *Collector) finish(result *CycleResult) {
	result.EndTime = time.Now()
	slog.Info("collection cycle is complete", "cycle", result.ID, "products", result.NumProducts,
		"succeeded", result.NumSucceeded(), "failed", result.NumFailed(), "candles", result.NumCandles(),
		"duration", result.Duration())

	c.last.Store(result)
	c.results.Send(result)
}
