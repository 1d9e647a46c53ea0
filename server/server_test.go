// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bvk/candlebot/api"
	"github.com/bvk/candlebot/collector"
	"github.com/bvk/candlebot/config"
	"github.com/bvk/candlebot/exchange"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/visvasity/topic"
)

const candlesPrefix = "/api/v3/brokerage/market/products/"

type fakeExchange struct {
	t *testing.T

	throttled atomic.Int32

	mu            sync.Mutex
	candleQueries map[string]int
}

func (f *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v3/brokerage/key_permissions":
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"can_view":true,"can_trade":false,"portfolio_uuid":"test-portfolio"}`)

	case r.URL.Path == "/api/v3/brokerage/products":
		fmt.Fprint(w, `{"num_products":3,"products":[
			{"product_id":"BTC-USD","base_name":"Bitcoin","quote_name":"US Dollar","status":"online","price":"37000.01"},
			{"product_id":"ETH-USD","base_name":"Ethereum","quote_name":"US Dollar","status":"online"},
			{"product_id":"XYZ-USD","base_name":"Xyz","quote_name":"US Dollar","status":"offline"}]}`)

	case strings.HasPrefix(r.URL.Path, candlesPrefix) && strings.HasSuffix(r.URL.Path, "/candles"):
		productID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, candlesPrefix), "/candles")

		f.mu.Lock()
		f.candleQueries[productID]++
		n := f.candleQueries[productID]
		f.mu.Unlock()

		// First request for ETH-USD is throttled.
		if productID == "ETH-USD" && n == 1 {
			f.throttled.Add(1)
			http.Error(w, `{"error":"Too many requests"}`, http.StatusTooManyRequests)
			return
		}

		var parts []string
		for i := int64(0); i < 5; i++ {
			start := 1709287200 + i*300
			parts = append(parts, fmt.Sprintf(`{"start":"%d","low":"1.%d","high":"2.%d","open":"1.5","close":"1.%d","volume":"10.0"}`, start, i, i, i))
		}
		fmt.Fprintf(w, `{"candles":[%s]}`, strings.Join(parts, ","))

	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL)
		http.NotFound(w, r)
	}
}

type countingSink struct {
	mu     sync.Mutex
	writes map[string]int
}

func (c *countingSink) WriteCandles(ctx context.Context, productID string, candles []*exchange.Candle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes[productID]++
	return nil
}

func newTestServer(t *testing.T, configure ...func(*config.Config)) (*Server, *fakeExchange, *countingSink) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	fake := &fakeExchange{t: t, candleQueries: make(map[string]int)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.APIKey = "organizations/test/apiKeys/test"
	cfg.APISecret = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	cfg.DataDir = t.TempDir()
	cfg.RestHostname = strings.TrimPrefix(srv.URL, "http://")
	cfg.ThrottleBackoff = 10 * time.Millisecond
	cfg.PollInterval = time.Hour
	for _, fn := range configure {
		fn(cfg)
	}

	sink := &countingSink{writes: make(map[string]int)}
	s, err := New(context.Background(), cfg, kvmemdb.New(), &Options{
		RestScheme: "http",
		Sinks:      []collector.Sink{sink},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, fake, sink
}

func TestRunCycle(t *testing.T) {
	ctx := context.Background()
	s, fake, sink := newTestServer(t)

	result, err := s.RunCycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.NumProducts != 2 || result.NumSucceeded() != 2 || result.NumCandles() != 6 {
		t.Fatalf("unexpected cycle result %s", result)
	}

	if len(sink.writes) != 2 || sink.writes["BTC-USD"] != 1 || sink.writes["ETH-USD"] != 1 {
		t.Fatalf("want exactly one write per online product, got %v", sink.writes)
	}
	if n := fake.throttled.Load(); n != 1 {
		t.Fatalf("want 1 throttled response, got %d", n)
	}
	if n := fake.candleQueries["XYZ-USD"]; n != 0 {
		t.Fatalf("offline product must not be queried; got %d queries", n)
	}

	var stored []*exchange.Candle
	if err := s.Datastore().ScanCandles(ctx, "ETH-USD", nil, func(c *exchange.Candle) error {
		stored = append(stored, c)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(stored) != 3 {
		t.Fatalf("want 3 stored candles, got %d", len(stored))
	}
	if stored[0].Start != 1709287200+600 || stored[2].Close != "1.4" {
		t.Fatalf("want the latest 3 candles, got %v", stored)
	}

	latest, err := s.doLatest(ctx, &api.LatestRequest{ProductID: "ETH-USD", NumCached: 3})
	if err != nil {
		t.Fatal(err)
	}
	if latest.Error != "" || latest.Stored == nil || latest.Stored.Start != 1709287200+1200 {
		t.Fatalf("want the last stored candle, got %+v", latest)
	}
	if latest.PostgresStart != nil || latest.Cached != nil {
		t.Fatalf("want no results from unconfigured sinks, got %+v", latest)
	}

	latest, err = s.doLatest(ctx, &api.LatestRequest{ProductID: "XYZ-USD"})
	if err != nil {
		t.Fatal(err)
	}
	if latest.Error != "" || latest.Stored != nil {
		t.Fatalf("want no candles for the offline product, got %+v", latest)
	}
	if _, err := s.doLatest(ctx, &api.LatestRequest{}); err == nil {
		t.Fatalf("want error for empty product id")
	}
}

func TestStartStatus(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestServer(t)

	receiver, err := topic.Subscribe(s.Collector().Results(), 1, true)
	if err != nil {
		t.Fatal(err)
	}
	defer receiver.Close()

	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	ch, err := topic.ReceiveCh(receiver)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for the first cycle")
	}

	handler := s.HandlerMap()[api.StatusPath]
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, api.StatusPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want status 200, got %d: %s", rec.Code, rec.Body)
	}
	resp := new(api.StatusResponse)
	if err := json.NewDecoder(rec.Body).Decode(resp); err != nil {
		t.Fatal(err)
	}
	if resp.LastCycle == nil || resp.LastCycle.NumSucceeded != 2 {
		t.Fatalf("unexpected status response %+v", resp)
	}
	if resp.NumThrottled != 1 || len(resp.Limiters) != 2 {
		t.Fatalf("unexpected status counters %+v", resp)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	// Candles api serves the stored candles.
	body := strings.NewReader(`{"ProductID":"BTC-USD"}`)
	rec = httptest.NewRecorder()
	s.HandlerMap()[api.CandlesPath].ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api.CandlesPath, body))
	candles := new(api.CandlesResponse)
	if err := json.NewDecoder(rec.Body).Decode(candles); err != nil {
		t.Fatal(err)
	}
	if len(candles.Candles) != 3 {
		t.Fatalf("want 3 candles, got %+v", candles)
	}
}

func TestMissingCredentials(t *testing.T) {
	cfg := config.Default()
	if _, err := New(context.Background(), cfg, kvmemdb.New(), nil); err == nil {
		t.Fatalf("want error when credentials are missing")
	}
	cfg.APIKey, cfg.APISecret = "kid", "not a pem key"
	if _, err := New(context.Background(), cfg, kvmemdb.New(), nil); err == nil {
		t.Fatalf("want error for invalid api secret")
	}
}

type fakeInflux struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(data)), "\n")...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestInfluxSink(t *testing.T) {
	influx := new(fakeInflux)
	srv := httptest.NewServer(influx)
	t.Cleanup(srv.Close)

	s, _, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.InfluxURL = srv.URL
		cfg.InfluxToken = "token"
		cfg.InfluxOrg = "home"
		cfg.InfluxBucket = "market"
	})
	if s.influx == nil {
		t.Fatalf("want influxdb sink to be configured")
	}

	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.influx.Flush()

	influx.mu.Lock()
	defer influx.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range influx.lines {
		for _, id := range []string{"BTC-USD", "ETH-USD"} {
			if strings.HasPrefix(line, "candles,product_id="+id+" ") {
				counts[id]++
			}
		}
	}
	if counts["BTC-USD"] != 3 || counts["ETH-USD"] != 3 {
		t.Fatalf("want 3 points per product, got %v in %q", counts, influx.lines)
	}
}
