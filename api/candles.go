// Copyright (c) 2023 BVK Chaitanya

package api

import (
	"fmt"
	"os"
	"time"

	"github.com/bvk/candlebot/gobs"
	"github.com/bvk/candlebot/timerange"
)

const CandlesPath = "/candles"

type CandlesRequest struct {
	ProductID string

	// StartTime and EndTime select the candles with start time in the
	// [StartTime, EndTime) range. Zero values mean no limit.
	StartTime time.Time
	EndTime   time.Time
}

func (r *CandlesRequest) Check() error {
	if r.ProductID == "" {
		return fmt.Errorf("product id cannot be empty: %w", os.ErrInvalid)
	}
	return r.Range().Check()
}

func (r *CandlesRequest) Range() *timerange.Range {
	return &timerange.Range{Begin: r.StartTime, End: r.EndTime}
}

type CandlesResponse struct {
	Error string `json:",omitempty"`

	Candles []*gobs.Candle
}
