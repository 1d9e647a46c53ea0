// Copyright (c) 2023 BVK Chaitanya

package influxsink

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/bvk/candlebot/exchange"
)

func TestNewPoint(t *testing.T) {
	s := &Sink{}
	s.opts.setDefaults()

	c := &exchange.Candle{Start: 1709287200, Open: "1", High: "2", Low: "0.5", Close: "1.5", Volume: "10.25"}
	p, err := s.newPoint("BTC-USD", c)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != DefaultMeasurement {
		t.Fatalf("want measurement %q, got %q", DefaultMeasurement, p.Name())
	}
	if tags := p.TagList(); len(tags) != 1 || tags[0].Key != "product_id" || tags[0].Value != "BTC-USD" {
		t.Fatalf("want product_id tag, got %v", tags)
	}
	if !p.Time().Equal(c.Time()) {
		t.Fatalf("want point time %s, got %s", c.Time(), p.Time())
	}
	fields := make(map[string]any)
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	want := map[string]float64{"open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 10.25}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s: want %v, got %v", k, v, fields[k])
		}
	}

	bad := &exchange.Candle{Start: 1709287200, Open: "x", High: "2", Low: "0.5", Close: "1.5", Volume: "1"}
	if _, err := s.newPoint("BTC-USD", bad); err == nil {
		t.Fatalf("want error for malformed candle")
	}
}

func TestNewChecksArgs(t *testing.T) {
	if _, err := New("", "token", "org", "bucket", nil); err == nil {
		t.Fatalf("want error for empty url")
	}
	if _, err := New("http://localhost:8086", "token", "org", "", nil); err == nil {
		t.Fatalf("want error for empty bucket")
	}
}

func TestSink(t *testing.T) {
	serverURL := os.Getenv("CANDLEBOT_TEST_INFLUX_URL")
	if serverURL == "" {
		t.Skip("no influxdb server")
		return
	}
	token := os.Getenv("CANDLEBOT_TEST_INFLUX_TOKEN")
	org := os.Getenv("CANDLEBOT_TEST_INFLUX_ORG")
	bucket := os.Getenv("CANDLEBOT_TEST_INFLUX_BUCKET")

	ctx := context.Background()
	measurement := fmt.Sprintf("candles_test_%d", time.Now().UnixNano())
	s, err := New(serverURL, token, org, bucket, &Options{Measurement: measurement})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}

	base := time.Now().Add(-time.Hour).Truncate(5 * time.Minute).Unix()
	candles := []*exchange.Candle{
		{Start: base, Open: "1", High: "2", Low: "0.5", Close: "1.5", Volume: "10"},
		{Start: base + 300, Open: "1.5", High: "2", Low: "1", Close: "1.75", Volume: "12.25"},
	}
	if err := s.WriteCandles(ctx, "BTC-USD", candles); err != nil {
		t.Fatal(err)
	}
	s.Flush()

	query := fmt.Sprintf(`from(bucket: %q) |> range(start: -2h) |> filter(fn: (r) => r._measurement == %q and r.product_id == "BTC-USD" and r._field == "close")`, bucket, measurement)
	result, err := s.client.QueryAPI(org).Query(ctx, query)
	if err != nil {
		t.Fatal(err)
	}
	defer result.Close()

	n := 0
	for result.Next() {
		n++
	}
	if err := result.Err(); err != nil {
		t.Fatal(err)
	}
	if n != len(candles) {
		t.Fatalf("want %d close values, got %d", len(candles), n)
	}
}
