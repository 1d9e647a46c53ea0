// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"time"

	"github.com/bvk/candlebot/collector"
)

type Options struct {
	// RestScheme is the url scheme for the exchange REST api. Defaults to
	// https.
	RestScheme string

	// HttpClientTimeout is the timeout for the exchange api requests.
	HttpClientTimeout time.Duration

	// Sinks holds additional candle sinks, which receive the candles after the
	// builtin sinks.
	Sinks []collector.Sink

	// SinkRetryInterval is the time between sink readiness checks.
	SinkRetryInterval time.Duration
}

func (v *Options) setDefaults() {
	if v.RestScheme == "" {
		v.RestScheme = "https"
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 10 * time.Second
	}
	if v.SinkRetryInterval == 0 {
		v.SinkRetryInterval = time.Second
	}
}
