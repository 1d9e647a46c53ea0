// Copyright (c) 2023 BVK Chaitanya

// Package marketdata fetches the active product catalog and the latest
// candles from the exchange. Both operations degrade to empty results on
// failures so that callers never have to handle fetch errors.
package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bvk/candlebot/coinbase/advanced"
	"github.com/bvk/candlebot/dispatch"
	"github.com/bvk/candlebot/exchange"
	"github.com/bvk/candlebot/ratelimit"
)

// API is the subset of the exchange REST api used for market data.
type API interface {
	ListProducts(ctx context.Context) (*advanced.RawProductsResponse, error)
	GetPublicCandles(ctx context.Context, productID string, start, end time.Time, granularity string) (*advanced.RawCandlesResponse, error)
}

type Client struct {
	opts Options

	api API

	exec *dispatch.Executor
}

func New(api API, exec *dispatch.Executor, opts *Options) *Client {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()

	return &Client{
		opts: v,
		api:  api,
		exec: exec,
	}
}

// Products returns all well-formed products from the exchange catalog,
// irrespective of their trading status.
func (c *Client) Products(ctx context.Context) ([]*exchange.Product, error) {
	resp, err := dispatch.Call(ctx, c.exec, ratelimit.Public, c.api.ListProducts)
	if err != nil {
		return nil, err
	}

	products := make([]*exchange.Product, 0, len(resp.Products))
	for i, raw := range resp.Products {
		p, err := decodeProduct(raw)
		if err != nil {
			slog.Warn("could not decode product entry (ignored)", "index", i, "err", err)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// ListActiveProducts returns the products that are currently online. Fetch
// failures are logged and result in an empty list.
func (c *Client) ListActiveProducts(ctx context.Context) []*exchange.Product {
	products, err := c.Products(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not fetch product catalog", "err", err)
		}
		return []*exchange.Product{}
	}

	active := make([]*exchange.Product, 0, len(products))
	for _, p := range products {
		if p.IsOnline() {
			active = append(active, p)
		}
	}
	slog.Info("found active trading pairs", "active", len(active), "total", len(products))
	return active
}

// LatestCandles returns up to MaxCandles most recent candles for the product
// in ascending order of their start time. Fetch failures are logged and
// result in an empty list.
func (c *Client) LatestCandles(ctx context.Context, productID string) []*exchange.Candle {
	end := c.opts.Now().UTC()
	start := end.Add(-c.opts.Lookback)

	resp, err := dispatch.Call(ctx, c.exec, ratelimit.Public, func(ctx context.Context) (*advanced.RawCandlesResponse, error) {
		return c.api.GetPublicCandles(ctx, productID, start, end, c.opts.Granularity)
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not fetch candles", "product", productID, "err", err)
		}
		return []*exchange.Candle{}
	}

	candles := make([]*exchange.Candle, 0, len(resp.Candles))
	for i, raw := range resp.Candles {
		candle, err := decodeCandle(raw)
		if err != nil {
			slog.Warn("could not decode candle entry (ignored)", "product", productID, "index", i, "err", err)
			continue
		}
		candles = append(candles, candle)
	}

	candles = exchange.SortCandles(candles)
	if n := len(candles); n > c.opts.MaxCandles {
		candles = candles[n-c.opts.MaxCandles:]
	}
	return candles
}
