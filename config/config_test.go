// Copyright (c) 2023 BVK Chaitanya

package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup(t *testing.T) {
	env := map[string]string{
		"COINBASE_API_KEY":        "kid",
		"COINBASE_API_SECRET":     "pem",
		"CANDLEBOT_DATA_DIR":      "/tmp/candlebot",
		"CANDLEBOT_POLL_INTERVAL": "1m",
		"CANDLEBOT_PUBLIC_RPS":    "5",
		"CANDLEBOT_REDIS_ADDR":    "localhost:6379",
		"CANDLEBOT_POSTGRES_URL":  "",
		"CANDLEBOT_INFLUX_URL":    "http://localhost:8086",
		"CANDLEBOT_INFLUX_ORG":    "home",
		"CANDLEBOT_INFLUX_BUCKET": "market",
	}
	c, err := FromLookup(lookupMap(env))
	if err != nil {
		t.Fatal(err)
	}
	if c.PollInterval != time.Minute || c.PublicRPS != 5 || c.DataDir != "/tmp/candlebot" {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.PrivateRPS != 30 || c.ThrottleBackoff != 2*time.Second || c.ShutdownTimeout != 30*time.Second {
		t.Fatalf("want default values for unset variables, got %+v", c)
	}
	if c.PostgresURL != "" || c.RedisAddr != "localhost:6379" || c.InfluxURL != "http://localhost:8086" || c.InfluxBucket != "market" {
		t.Fatalf("unexpected sink configuration %+v", c)
	}
	if err := c.CheckCredentials(); err != nil {
		t.Fatal(err)
	}
}

func TestFromLookupInvalid(t *testing.T) {
	tests := []map[string]string{
		{"CANDLEBOT_POLL_INTERVAL": "soon"},
		{"CANDLEBOT_POLL_INTERVAL": "-1s"},
		{"CANDLEBOT_PUBLIC_RPS": "ten"},
		{"CANDLEBOT_PRIVATE_RPS": "0"},
		{"CANDLEBOT_INFLUX_URL": "http://localhost:8086", "CANDLEBOT_INFLUX_ORG": "home"},
	}
	for i, env := range tests {
		if _, err := FromLookup(lookupMap(env)); err == nil {
			t.Errorf("%d: want error for %v", i, env)
		}
	}
}

func TestMissingCredentials(t *testing.T) {
	c, err := FromLookup(lookupMap(map[string]string{"CANDLEBOT_DATA_DIR": "/tmp/x"}))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.CheckCredentials(); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid for missing credentials, got %v", err)
	}
}
