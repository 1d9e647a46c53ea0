// Copyright (c) 2023 BVK Chaitanya

// Package rediscache keeps the most recent candles of every product in
// Redis sorted sets, scored by the candle start time.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bvk/candlebot/exchange"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRetention = 24 * time.Hour
	DefaultPrefix    = "candles"
)

type Options struct {
	// Prefix is prepended to all redis keys.
	Prefix string

	// Retention is the age after which candles are evicted from the cache.
	Retention time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (v *Options) setDefaults() {
	if v.Prefix == "" {
		v.Prefix = DefaultPrefix
	}
	if v.Retention == 0 {
		v.Retention = DefaultRetention
	}
	if v.Now == nil {
		v.Now = time.Now
	}
}

type Cache struct {
	opts Options

	client *redis.Client
}

// New creates a cache for the redis server at addr.
func New(addr string, opts *Options) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), opts)
}

func NewWithClient(client *redis.Client, opts *Options) *Cache {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()

	return &Cache{
		opts:   v,
		client: client,
	}
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping verifies that the redis server is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("could not ping redis: %w", err)
	}
	return nil
}

func (c *Cache) key(productID string) string {
	return fmt.Sprintf("%s:%s", c.opts.Prefix, productID)
}

type member struct {
	Start  int64  `json:"start"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// WriteCandles adds the candles to the product's sorted set, replacing any
// cached candle with the same start time, and evicts the expired candles.
func (c *Cache) WriteCandles(ctx context.Context, productID string, candles []*exchange.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	key := c.key(productID)

	pipe := c.client.TxPipeline()
	for _, v := range candles {
		data, err := json.Marshal(&member{Start: v.Start, Open: v.Open, High: v.High, Low: v.Low, Close: v.Close, Volume: v.Volume})
		if err != nil {
			return fmt.Errorf("could not marshal candle: %w", err)
		}
		score := strconv.FormatInt(v.Start, 10)
		pipe.ZRemRangeByScore(ctx, key, score, score)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(v.Start), Member: string(data)})
	}

	minScore := c.opts.Now().Add(-c.opts.Retention).Unix()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", minScore))
	pipe.Expire(ctx, key, c.opts.Retention)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("could not add candles to redis cache", "product", productID, "err", err)
		return fmt.Errorf("could not add candles of %q to redis: %w", productID, err)
	}
	return nil
}

// LatestCandles returns up to n most recent cached candles of the product in
// ascending order of their start time.
func (c *Cache) LatestCandles(ctx context.Context, productID string, n int64) ([]*exchange.Candle, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := c.client.ZRevRange(ctx, c.key(productID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("could not fetch cached candles of %q: %w", productID, err)
	}

	candles := make([]*exchange.Candle, 0, len(members))
	for i := len(members) - 1; i >= 0; i-- {
		var m member
		if err := json.Unmarshal([]byte(members[i]), &m); err != nil {
			slog.Warn("could not parse cached candle (ignored)", "product", productID, "member", members[i], "err", err)
			continue
		}
		candles = append(candles, &exchange.Candle{Start: m.Start, Open: m.Open, High: m.High, Low: m.Low, Close: m.Close, Volume: m.Volume})
	}
	return candles, nil
}
