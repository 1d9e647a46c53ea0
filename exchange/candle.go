// Copyright (c) 2023 BVK Chaitanya

package exchange

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Candle holds OHLCV data for one fixed interval. Price and volume fields are
// kept as the decimal strings reported by the exchange so that no precision
// is lost before they reach a sink.
type Candle struct {
	// Start is the interval start time in unix seconds.
	Start int64

	Open   string
	High   string
	Low    string
	Close  string
	Volume string
}

// Time returns the interval start time in UTC.
func (c *Candle) Time() time.Time {
	return time.Unix(c.Start, 0).UTC()
}

// CandleDecimals holds the numeric values of a Candle.
type CandleDecimals struct {
	Open, High, Low, Close, Volume decimal.Decimal
}

// Decimals parses the price and volume fields.
func (c *Candle) Decimals() (*CandleDecimals, error) {
	var v CandleDecimals
	fields := []struct {
		name string
		str  string
		dst  *decimal.Decimal
	}{
		{"open", c.Open, &v.Open},
		{"high", c.High, &v.High},
		{"low", c.Low, &v.Low},
		{"close", c.Close, &v.Close},
		{"volume", c.Volume, &v.Volume},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.str)
		if err != nil {
			return nil, fmt.Errorf("could not parse candle %s value %q: %w", f.name, f.str, err)
		}
		*f.dst = d
	}
	return &v, nil
}

// Check returns a non-nil error if candle fields are not well-formed.
func (c *Candle) Check() error {
	if c.Start <= 0 {
		return fmt.Errorf("candle start time %d is invalid", c.Start)
	}
	if _, err := c.Decimals(); err != nil {
		return err
	}
	return nil
}

func (c *Candle) String() string {
	return fmt.Sprintf("{Start: %s Open: %s High: %s Low: %s Close: %s Volume: %s}",
		c.Time().Format(time.DateTime), c.Open, c.High, c.Low, c.Close, c.Volume)
}

func CompareCandles(a, b *Candle) int {
	switch {
	case a.Start < b.Start:
		return -1
	case a.Start > b.Start:
		return 1
	}
	return 0
}

// SortCandles sorts the candles in ascending order of start time and removes
// the candles with duplicate start times, keeping the first one.
func SortCandles(cs []*Candle) []*Candle {
	slices.SortStableFunc(cs, CompareCandles)
	return slices.CompactFunc(cs, func(a, b *Candle) bool { return a.Start == b.Start })
}
