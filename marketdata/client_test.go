// Copyright (c) 2023 BVK Chaitanya

package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bvk/candlebot/coinbase/advanced"
	"github.com/bvk/candlebot/dispatch"
	"github.com/bvk/candlebot/ratelimit"
)

type fakeAPI struct {
	products []string
	candles  []string

	productsErr error
	candlesErr  error

	start, end  time.Time
	granularity string
}

func (f *fakeAPI) ListProducts(ctx context.Context) (*advanced.RawProductsResponse, error) {
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	resp := new(advanced.RawProductsResponse)
	for _, p := range f.products {
		resp.Products = append(resp.Products, json.RawMessage(p))
	}
	return resp, nil
}

func (f *fakeAPI) GetPublicCandles(ctx context.Context, productID string, start, end time.Time, granularity string) (*advanced.RawCandlesResponse, error) {
	f.start, f.end, f.granularity = start, end, granularity
	if f.candlesErr != nil {
		return nil, f.candlesErr
	}
	resp := new(advanced.RawCandlesResponse)
	for _, c := range f.candles {
		resp.Candles = append(resp.Candles, json.RawMessage(c))
	}
	return resp, nil
}

func newTestClient(api API, now time.Time) *Client {
	public := ratelimit.New("public", &ratelimit.Options{MaxRPS: ratelimit.PublicRPS})
	private := ratelimit.New("private", &ratelimit.Options{MaxRPS: ratelimit.PrivateRPS})
	exec := dispatch.New(public, private, &dispatch.Options{ThrottleBackoff: time.Millisecond})
	return New(api, exec, &Options{Now: func() time.Time { return now }})
}

func rawCandleJSON(start int64, price string) string {
	return fmt.Sprintf(`{"start":"%d","low":"%s","high":"%s","open":"%s","close":"%s","volume":"12.50"}`, start, price, price, price, price)
}

func TestListActiveProducts(t *testing.T) {
	api := &fakeAPI{
		products: []string{
			`{"product_id":"BTC-USD","base_name":"Bitcoin","quote_name":"US Dollar","status":"online","price":"37000.01"}`,
			`{"product_id":"ETH-USD","base_name":"Ethereum","quote_name":"US Dollar","status":"online"}`,
			`{"product_id":"LTC-USD","base_name":"Litecoin","quote_name":"US Dollar","status":"ONLINE"}`,
			`{"product_id":"XYZ-USD","base_name":"Xyz","quote_name":"US Dollar","status":"offline"}`,
			`{"product_id":"BAD-USD","status":"online"}`,
			`"not an object"`,
		},
	}
	c := newTestClient(api, time.Now())

	products := c.ListActiveProducts(context.Background())
	if len(products) != 2 {
		t.Fatalf("want 2 active products, got %d", len(products))
	}
	if products[0].ProductID != "BTC-USD" || products[1].ProductID != "ETH-USD" {
		t.Fatalf("unexpected products %v", products)
	}
	if p := products[0].Price; p == nil || *p != "37000.01" {
		t.Fatalf("want price to be kept verbatim")
	}
	if products[1].Price != nil || products[1].Volume24h != nil {
		t.Fatalf("want nil optional fields when absent")
	}

	all, err := c.Products(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("want 4 well-formed products, got %d", len(all))
	}
}

func TestListActiveProductsFailure(t *testing.T) {
	api := &fakeAPI{productsErr: &advanced.HTTPError{StatusCode: http.StatusInternalServerError}}
	c := newTestClient(api, time.Now())

	products := c.ListActiveProducts(context.Background())
	if products == nil || len(products) != 0 {
		t.Fatalf("want an empty non-nil list on failure, got %v", products)
	}
}

func TestLatestCandles(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 17, 30, 0, time.UTC)
	base := now.Truncate(5 * time.Minute).Unix()

	// Out of order, with a duplicate and a malformed entry.
	api := &fakeAPI{
		candles: []string{
			rawCandleJSON(base-300, "4.0"),
			rawCandleJSON(base, "5.0"),
			rawCandleJSON(base-1200, "1.0"),
			rawCandleJSON(base-600, "3.0"),
			rawCandleJSON(base-900, "2.0"),
			rawCandleJSON(base-600, "3.5"),
			`{"start":"abc","low":"1","high":"1","open":"1","close":"1","volume":"1"}`,
			`{"start":"1700000000","low":"x","high":"1","open":"1","close":"1","volume":"1"}`,
		},
	}
	c := newTestClient(api, now.In(time.FixedZone("IST", 19800)))

	candles := c.LatestCandles(context.Background(), "BTC-USD")
	if len(candles) != 3 {
		t.Fatalf("want 3 candles, got %d", len(candles))
	}
	for i, want := range []int64{base - 600, base - 300, base} {
		if candles[i].Start != want {
			t.Fatalf("candle %d: want start %d, got %d", i, want, candles[i].Start)
		}
	}
	if candles[0].Close != "3.0" {
		t.Fatalf("want the first of the duplicate candles, got close %s", candles[0].Close)
	}
	if candles[2].Volume != "12.50" {
		t.Fatalf("want volume kept verbatim, got %q", candles[2].Volume)
	}

	if !api.end.Equal(now) || api.end.Location() != time.UTC {
		t.Fatalf("want end time %s in UTC, got %s", now, api.end)
	}
	if d := api.end.Sub(api.start); d != 15*time.Minute {
		t.Fatalf("want 15m lookback, got %s", d)
	}
	if api.granularity != "FIVE_MINUTE" {
		t.Fatalf("want FIVE_MINUTE granularity, got %q", api.granularity)
	}
}

func TestLatestCandlesFewer(t *testing.T) {
	api := &fakeAPI{candles: []string{rawCandleJSON(1700000300, "2"), rawCandleJSON(1700000000, "1")}}
	c := newTestClient(api, time.Now())

	candles := c.LatestCandles(context.Background(), "BTC-USD")
	if len(candles) != 2 || candles[0].Start > candles[1].Start {
		t.Fatalf("want 2 ascending candles, got %v", candles)
	}
}

func TestLatestCandlesFailure(t *testing.T) {
	api := &fakeAPI{candlesErr: errors.New("connection reset")}
	c := newTestClient(api, time.Now())

	if candles := c.LatestCandles(context.Background(), "BTC-USD"); len(candles) != 0 {
		t.Fatalf("want no candles on failure, got %d", len(candles))
	}
}

func TestLatestCandlesThrottled(t *testing.T) {
	api := &throttledAPI{fakeAPI: fakeAPI{candles: []string{rawCandleJSON(1700000000, "1")}}, throttles: 3}

	// Clock advances on every read, so a recomputed window would differ.
	clock := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	public := ratelimit.New("public", &ratelimit.Options{MaxRPS: ratelimit.PublicRPS})
	private := ratelimit.New("private", &ratelimit.Options{MaxRPS: ratelimit.PrivateRPS})
	exec := dispatch.New(public, private, &dispatch.Options{ThrottleBackoff: time.Millisecond})
	c := New(api, exec, &Options{Now: now})

	if candles := c.LatestCandles(context.Background(), "BTC-USD"); len(candles) != 1 {
		t.Fatalf("want 1 candle after throttled retries, got %d", len(candles))
	}
	if len(api.requests) != 4 {
		t.Fatalf("want 4 calls, got %d", len(api.requests))
	}
	first := api.requests[0]
	if first.productID != "BTC-USD" || first.granularity != "FIVE_MINUTE" || first.end.Sub(first.start) != 15*time.Minute {
		t.Fatalf("unexpected first request %+v", first)
	}
	for i, req := range api.requests[1:] {
		if req != first {
			t.Errorf("retry %d: want request %+v, got %+v", i+1, first, req)
		}
	}
}

type candlesRequest struct {
	productID   string
	start, end  time.Time
	granularity string
}

type throttledAPI struct {
	fakeAPI

	requests  []candlesRequest
	throttles int
}

func (f *throttledAPI) GetPublicCandles(ctx context.Context, productID string, start, end time.Time, granularity string) (*advanced.RawCandlesResponse, error) {
	f.requests = append(f.requests, candlesRequest{productID, start, end, granularity})
	if len(f.requests) <= f.throttles {
		return nil, &advanced.HTTPError{StatusCode: http.StatusTooManyRequests}
	}
	return f.fakeAPI.GetPublicCandles(ctx, productID, start, end, granularity)
}
