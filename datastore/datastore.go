// Copyright (c) 2023 BVK Chaitanya

// Package datastore implements a candle sink on top of a key-value
// database. Candles are saved in one key per product per hour. For example,
// candles for BTC-USD starting between 10:00 and 10:59 UTC on 2024-03-01 are
// saved at "/candles/BTC-USD/2024-03-01/10".
package datastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/bvk/candlebot/exchange"
	"github.com/bvk/candlebot/gobs"
	"github.com/bvk/candlebot/kvutil"
	"github.com/bvk/candlebot/timerange"
	"github.com/bvkgo/kv"
)

const Keyspace = "/candles/"

type Datastore struct {
	db kv.Database
}

func New(db kv.Database) *Datastore {
	return &Datastore{
		db: db,
	}
}

func checkProductID(productID string) error {
	if productID == "" || productID == "." || productID == ".." || strings.Contains(productID, "/") {
		return fmt.Errorf("product id %q is not a valid key component: %w", productID, os.ErrInvalid)
	}
	return nil
}

func hourKey(productID string, start int64) string {
	t := time.Unix(start, 0).UTC()
	k1 := fmt.Sprintf("%04d-%02d-%02d", t.Year(), t.Month(), t.Day())
	k2 := fmt.Sprintf("%02d", t.Hour())
	return path.Join(Keyspace, productID, k1, k2)
}

func toGob(c *exchange.Candle, now int64) *gobs.Candle {
	return &gobs.Candle{
		Start:     c.Start,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		UpdatedAt: now,
	}
}

func fromGob(v *gobs.Candle) *exchange.Candle {
	return &exchange.Candle{
		Start:  v.Start,
		Open:   v.Open,
		High:   v.High,
		Low:    v.Low,
		Close:  v.Close,
		Volume: v.Volume,
	}
}

func compareGobCandles(a, b *gobs.Candle) int {
	switch {
	case a.Start < b.Start:
		return -1
	case a.Start > b.Start:
		return 1
	}
	return 0
}

// WriteCandles merges the candles into their hourly keys in a single
// transaction. Existing candles with the same start time are replaced
// because the most recent candle keeps changing till its interval is over.
func (ds *Datastore) WriteCandles(ctx context.Context, productID string, candles []*exchange.Candle) error {
	if err := checkProductID(productID); err != nil {
		return err
	}
	if len(candles) == 0 {
		return nil
	}

	now := time.Now().Unix()
	kmap := make(map[string][]*exchange.Candle)
	for _, c := range candles {
		key := hourKey(productID, c.Start)
		kmap[key] = append(kmap[key], c)
	}

	update := func(ctx context.Context, rw kv.ReadWriter) error {
		for key, cs := range kmap {
			value, err := kvutil.Get[gobs.Candles](ctx, rw, key)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("could not load candles at %q: %w", key, err)
				}
				value = &gobs.Candles{ProductID: productID}
			}
			for _, c := range cs {
				v := toGob(c, now)
				if i, ok := slices.BinarySearchFunc(value.Candles, v, compareGobCandles); ok {
					value.Candles[i] = v
				} else {
					value.Candles = slices.Insert(value.Candles, i, v)
				}
			}
			if err := kvutil.Set(ctx, rw, key, value); err != nil {
				return fmt.Errorf("could not save candles at %q: %w", key, err)
			}
		}
		return nil
	}
	if err := kv.WithReadWriter(ctx, ds.db, update); err != nil {
		return fmt.Errorf("could not write %d candles for product %q: %w", len(candles), productID, err)
	}
	return nil
}

// ScanCandles invokes the callback in ascending order for every saved
// candle of the product with start time in the input range. A nil range
// selects all candles.
func (ds *Datastore) ScanCandles(ctx context.Context, productID string, period *timerange.Range, fn func(*exchange.Candle) error) error {
	if err := checkProductID(productID); err != nil {
		return err
	}
	if period == nil {
		period = new(timerange.Range)
	}
	if err := period.Check(); err != nil {
		return err
	}

	beginKey, endKey := kvutil.PathRange(path.Join(Keyspace, productID))
	if !period.Begin.IsZero() {
		beginKey = hourKey(productID, period.Begin.Unix())
	}

	wrapper := func(ctx context.Context, r kv.Reader, key string, value *gobs.Candles) error {
		for _, v := range value.Candles {
			start := time.Unix(v.Start, 0)
			if period.Before(start) {
				return errStop
			}
			if !period.InRange(start) {
				continue
			}
			if err := fn(fromGob(v)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := kvutil.AscendDB(ctx, ds.db, beginKey, endKey, wrapper); err != nil && !errors.Is(err, errStop) {
		return err
	}
	return nil
}

var errStop = errors.New("stop")

// LastCandle returns the most recent saved candle for the product. Returns
// os.ErrNotExist if no candles are saved for the product.
func (ds *Datastore) LastCandle(ctx context.Context, productID string) (*exchange.Candle, error) {
	if err := checkProductID(productID); err != nil {
		return nil, err
	}
	begin, end := kvutil.PathRange(path.Join(Keyspace, productID))
	key, value, err := kvutil.LastDB[gobs.Candles](ctx, ds.db, begin, end)
	if err != nil {
		return nil, fmt.Errorf("could not fetch last candles key for %q: %w", productID, err)
	}
	if key == "" || len(value.Candles) == 0 {
		return nil, os.ErrNotExist
	}
	return fromGob(value.Candles[len(value.Candles)-1]), nil
}
