// Copyright (c) 2023 BVK Chaitanya

// Package influxsink implements a candle sink for InfluxDB v2. Candles are
// written as points of a measurement tagged with the product id, through the
// non-blocking batching writer of the client.
package influxsink

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bvk/candlebot/exchange"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const DefaultMeasurement = "candles"

type Options struct {
	// Measurement is the name of the candles measurement.
	Measurement string

	// BatchSize is the max number of points sent in a single write.
	BatchSize uint

	// FlushIntervalMillis is the max time, in milliseconds, points are
	// buffered before they are sent.
	FlushIntervalMillis uint
}

func (v *Options) setDefaults() {
	if v.Measurement == "" {
		v.Measurement = DefaultMeasurement
	}
	if v.BatchSize == 0 {
		v.BatchSize = 500
	}
	if v.FlushIntervalMillis == 0 {
		v.FlushIntervalMillis = 10000
	}
}

type Sink struct {
	opts Options

	client influxdb2.Client

	writer api.WriteAPI
}

// New creates a sink writing to the bucket of the organization. The server is
// not contacted until the first flush, so New doesn't fail when it is
// unreachable.
func New(serverURL, token, org, bucket string, opts *Options) (*Sink, error) {
	if serverURL == "" || org == "" || bucket == "" {
		return nil, fmt.Errorf("influxdb url, org and bucket must all be non-empty: %w", os.ErrInvalid)
	}
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()

	options := influxdb2.DefaultOptions().
		SetBatchSize(v.BatchSize).
		SetFlushInterval(v.FlushIntervalMillis)
	client := influxdb2.NewClientWithOptions(serverURL, token, options)

	s := &Sink{
		opts:   v,
		client: client,
		writer: client.WriteAPI(org, bucket),
	}

	// Error channel is closed by the client on Close.
	errCh := s.writer.Errors()
	go func() {
		for err := range errCh {
			slog.Error("could not write candles to influxdb", "bucket", bucket, "err", err)
		}
	}()
	return s, nil
}

// Close flushes the buffered points and closes the client.
func (s *Sink) Close() error {
	s.writer.Flush()
	s.client.Close()
	return nil
}

// Ping verifies that the server is reachable.
func (s *Sink) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("could not ping influxdb: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb is not ready: %w", os.ErrNotExist)
	}
	return nil
}

// Flush sends the buffered points immediately.
func (s *Sink) Flush() {
	s.writer.Flush()
}

// WriteCandles queues the candles for writing. Points are sent in the
// background, so server errors are only logged.
func (s *Sink) WriteCandles(ctx context.Context, productID string, candles []*exchange.Candle) error {
	points := make([]*write.Point, 0, len(candles))
	for _, c := range candles {
		p, err := s.newPoint(productID, c)
		if err != nil {
			slog.Error("could not create influxdb point for candle", "product", productID, "candle", c, "err", err)
			return err
		}
		points = append(points, p)
	}
	for _, p := range points {
		s.writer.WritePoint(p)
	}
	slog.Debug("queued candles for influxdb", "product", productID, "candles", len(points))
	return nil
}

func (s *Sink) newPoint(productID string, c *exchange.Candle) (*write.Point, error) {
	d, err := c.Decimals()
	if err != nil {
		return nil, err
	}
	tags := map[string]string{
		"product_id": productID,
	}
	fields := map[string]any{
		"open":   d.Open.InexactFloat64(),
		"high":   d.High.InexactFloat64(),
		"low":    d.Low.InexactFloat64(),
		"close":  d.Close.InexactFloat64(),
		"volume": d.Volume.InexactFloat64(),
	}
	return influxdb2.NewPoint(s.opts.Measurement, tags, fields, c.Time()), nil
}
