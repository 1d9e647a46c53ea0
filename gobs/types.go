// Copyright (c) 2023 BVK Chaitanya

// Package gobs defines the gob-encoded value types stored in the key-value
// database.
package gobs

type KeyValue struct {
	Key   string
	Value []byte
}

// Candle is the stored form of a single candle. Price and volume fields are
// decimal strings as reported by the exchange.
type Candle struct {
	Start int64

	Open   string
	High   string
	Low    string
	Close  string
	Volume string

	// UpdatedAt is the unix time (in seconds) when the candle was last
	// written.
	UpdatedAt int64
}

// Candles holds all candles of a product for a single hour, sorted by the
// start time.
type Candles struct {
	ProductID string

	Candles []*Candle
}
