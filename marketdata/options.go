// Copyright (c) 2023 BVK Chaitanya

package marketdata

import "time"

const (
	DefaultLookback    = 15 * time.Minute
	DefaultGranularity = "FIVE_MINUTE"
	DefaultMaxCandles  = 3
)

type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Lookback is the length of the time range requested for candles.
	Lookback time.Duration

	// Granularity is the candle granularity name used by the exchange.
	Granularity string

	// MaxCandles is the maximum number of most recent candles returned per
	// product.
	MaxCandles int
}

func (v *Options) setDefaults() {
	if v.Now == nil {
		v.Now = time.Now
	}
	if v.Lookback == 0 {
		v.Lookback = DefaultLookback
	}
	if v.Granularity == "" {
		v.Granularity = DefaultGranularity
	}
	if v.MaxCandles == 0 {
		v.MaxCandles = DefaultMaxCandles
	}
}
