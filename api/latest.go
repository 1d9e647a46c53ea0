// Copyright (c) 2023 BVK Chaitanya

package api

import (
	"fmt"
	"os"
	"time"

	"github.com/bvk/candlebot/gobs"
)

const LatestPath = "/latest"

// LatestRequest asks for the most recent candle saved by each sink.
type LatestRequest struct {
	ProductID string

	// NumCached is the number of recent candles to return from the cache.
	NumCached int64
}

func (r *LatestRequest) Check() error {
	if r.ProductID == "" {
		return fmt.Errorf("product id cannot be empty: %w", os.ErrInvalid)
	}
	if r.NumCached < 0 {
		return fmt.Errorf("number of cached candles cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}

type LatestResponse struct {
	Error string `json:",omitempty"`

	// Stored is the last candle in the local database; nil if there is none.
	Stored *gobs.Candle `json:",omitempty"`

	// PostgresStart is the start time of the last candle in postgres. Nil when
	// the postgres sink is not configured.
	PostgresStart *time.Time `json:",omitempty"`

	// Cached holds the most recent candles from redis in ascending order.
	Cached []*gobs.Candle `json:",omitempty"`
}
