// Copyright (c) 2023 BVK Chaitanya

package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/bvk/candlebot/exchange"
)

// Sink persists candles for a product. WriteCandles is invoked at most once
// per product per cycle with a non-empty list of candles in ascending order.
// Implementations must be safe for concurrent use.
type Sink interface {
	WriteCandles(ctx context.Context, productID string, candles []*exchange.Candle) error
}

// MultiSink writes candles to multiple sinks in order. Failure in one sink
// doesn't prevent writes to the others.
type MultiSink []Sink

func (ms MultiSink) WriteCandles(ctx context.Context, productID string, candles []*exchange.Candle) error {
	var errs []error
	for i, s := range ms {
		if err := s.WriteCandles(ctx, productID, candles); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
