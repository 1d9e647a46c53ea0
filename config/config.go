// Copyright (c) 2023 BVK Chaitanya

// Package config defines the service configuration, which is read from the
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bvk/candlebot/ratelimit"
	"github.com/bvk/candlebot/scheduler"
)

// EnvFile is the name of the optional env file loaded before reading the
// environment.
const EnvFile = ".candlebot.env"

type Config struct {
	// APIKey is the CDP api key name, which is used as the JWT key id.
	APIKey string

	// APISecret is the PEM encoded EC private key of the api key.
	APISecret string

	// DataDir holds the database, log files and the lock file.
	DataDir string

	PollInterval    time.Duration
	ShutdownTimeout time.Duration

	PublicRPS  int
	PrivateRPS int

	ThrottleBackoff time.Duration

	// PostgresURL and RedisAddr enable the optional sinks when non-empty.
	PostgresURL string
	RedisAddr   string

	// InfluxURL enables the InfluxDB sink when non-empty. Org and bucket are
	// required with the url.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// SinkReadyTimeout is the max time to wait for the sinks to become
	// reachable during the startup.
	SinkReadyTimeout time.Duration

	RestHostname string
}

// Default returns the configuration with default values and no credentials.
func Default() *Config {
	return &Config{
		DataDir:          filepath.Join(os.Getenv("HOME"), ".candlebot"),
		PollInterval:     scheduler.DefaultInterval,
		ShutdownTimeout:  scheduler.DefaultShutdownTimeout,
		PublicRPS:        ratelimit.PublicRPS,
		PrivateRPS:       ratelimit.PrivateRPS,
		ThrottleBackoff:  2 * time.Second,
		SinkReadyTimeout: time.Minute,
	}
}

// FromEnv returns the configuration from the process environment.
func FromEnv() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup returns the configuration using the input function to look up
// the variable values. Unset or empty variables keep their default values.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()

	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		return v, ok && v != ""
	}
	strs := []struct {
		name string
		dst  *string
	}{
		{"COINBASE_API_KEY", &c.APIKey},
		{"COINBASE_API_SECRET", &c.APISecret},
		{"CANDLEBOT_DATA_DIR", &c.DataDir},
		{"CANDLEBOT_POSTGRES_URL", &c.PostgresURL},
		{"CANDLEBOT_REDIS_ADDR", &c.RedisAddr},
		{"CANDLEBOT_INFLUX_URL", &c.InfluxURL},
		{"CANDLEBOT_INFLUX_TOKEN", &c.InfluxToken},
		{"CANDLEBOT_INFLUX_ORG", &c.InfluxOrg},
		{"CANDLEBOT_INFLUX_BUCKET", &c.InfluxBucket},
		{"CANDLEBOT_REST_HOSTNAME", &c.RestHostname},
	}
	for _, s := range strs {
		if v, ok := get(s.name); ok {
			*s.dst = v
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"CANDLEBOT_POLL_INTERVAL", &c.PollInterval},
		{"CANDLEBOT_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
		{"CANDLEBOT_THROTTLE_BACKOFF", &c.ThrottleBackoff},
		{"CANDLEBOT_SINK_READY_TIMEOUT", &c.SinkReadyTimeout},
	}
	for _, d := range durations {
		if v, ok := get(d.name); ok {
			x, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("could not parse %s value %q as duration: %w", d.name, v, err)
			}
			*d.dst = x
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"CANDLEBOT_PUBLIC_RPS", &c.PublicRPS},
		{"CANDLEBOT_PRIVATE_RPS", &c.PrivateRPS},
	}
	for _, n := range ints {
		if v, ok := get(n.name); ok {
			x, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("could not parse %s value %q as integer: %w", n.name, v, err)
			}
			*n.dst = x
		}
	}

	if err := c.Check(); err != nil {
		return nil, err
	}
	return c, nil
}

// Check validates the configuration values except the credentials.
func (c *Config) Check() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty: %w", os.ErrInvalid)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %w", os.ErrInvalid)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown timeout cannot be negative: %w", os.ErrInvalid)
	}
	if c.PublicRPS <= 0 || c.PrivateRPS <= 0 {
		return fmt.Errorf("rate limits must be positive: %w", os.ErrInvalid)
	}
	if c.ThrottleBackoff < 0 {
		return fmt.Errorf("throttle backoff cannot be negative: %w", os.ErrInvalid)
	}
	if c.SinkReadyTimeout <= 0 {
		return fmt.Errorf("sink ready timeout must be positive: %w", os.ErrInvalid)
	}
	if c.InfluxURL != "" && (c.InfluxOrg == "" || c.InfluxBucket == "") {
		return fmt.Errorf("influxdb org and bucket must be set with the url: %w", os.ErrInvalid)
	}
	return nil
}

// CheckCredentials returns a non-nil error if the api credentials are not
// configured.
func (c *Config) CheckCredentials() error {
	if c.APIKey == "" {
		return fmt.Errorf("COINBASE_API_KEY is not set: %w", os.ErrInvalid)
	}
	if c.APISecret == "" {
		return fmt.Errorf("COINBASE_API_SECRET is not set: %w", os.ErrInvalid)
	}
	return nil
}
