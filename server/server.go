// Copyright (c) 2023 BVK Chaitanya

// Package server wires the candle collection service together from a
// configuration: the exchange client, rate limiters, market data client,
// sinks, collector and the scheduler.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/candlebot/coinbase/advanced"
	"github.com/bvk/candlebot/collector"
	"github.com/bvk/candlebot/config"
	"github.com/bvk/candlebot/ctxutil"
	"github.com/bvk/candlebot/datastore"
	"github.com/bvk/candlebot/dispatch"
	"github.com/bvk/candlebot/exchange"
	"github.com/bvk/candlebot/influxsink"
	"github.com/bvk/candlebot/marketdata"
	"github.com/bvk/candlebot/pgsink"
	"github.com/bvk/candlebot/ratelimit"
	"github.com/bvk/candlebot/rediscache"
	"github.com/bvk/candlebot/scheduler"
	"github.com/bvkgo/kv"
)

type Server struct {
	cg ctxutil.CloseGroup

	opts Options

	cfg config.Config

	startTime time.Time

	client *advanced.Client

	public, private *ratelimit.Limiter

	exec *dispatch.Executor

	market *marketdata.Client

	datastore *datastore.Datastore

	pg     *pgsink.Sink
	redis  *rediscache.Cache
	influx *influxsink.Sink

	collector *collector.Collector

	scheduler *scheduler.Scheduler
}

// New creates the service from the configuration. Candles are always saved
// in the input database; Postgres, Redis and InfluxDB sinks are added when
// they are configured.
func New(ctx context.Context, cfg *config.Config, db kv.Database, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if err := cfg.CheckCredentials(); err != nil {
		return nil, err
	}

	client, err := advanced.New(cfg.APIKey, cfg.APISecret, &advanced.Options{
		RestHostname:      cfg.RestHostname,
		Scheme:            v.RestScheme,
		HttpClientTimeout: v.HttpClientTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create coinbase client: %w", err)
	}

	s := &Server{
		opts:      v,
		cfg:       *cfg,
		startTime: time.Now(),
		client:    client,
		public:    ratelimit.New("public", &ratelimit.Options{MaxRPS: cfg.PublicRPS}),
		private:   ratelimit.New("private", &ratelimit.Options{MaxRPS: cfg.PrivateRPS}),
		datastore: datastore.New(db),
	}
	defer func() {
		if status != nil {
			s.Close()
		}
	}()

	s.exec = dispatch.New(s.public, s.private, &dispatch.Options{ThrottleBackoff: cfg.ThrottleBackoff})
	s.market = marketdata.New(client, s.exec, nil /* opts */)

	sinks := collector.MultiSink{s.datastore}
	if cfg.PostgresURL != "" {
		pg, err := pgsink.New(ctx, cfg.PostgresURL, nil /* opts */)
		if err != nil {
			return nil, err
		}
		s.pg = pg
		sinks = append(sinks, pg)
	}
	if cfg.RedisAddr != "" {
		s.redis = rediscache.New(cfg.RedisAddr, nil /* opts */)
		sinks = append(sinks, s.redis)
	}
	if cfg.InfluxURL != "" {
		influx, err := influxsink.New(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, nil /* opts */)
		if err != nil {
			return nil, err
		}
		s.influx = influx
		sinks = append(sinks, influx)
	}
	sinks = append(sinks, v.Sinks...)

	s.collector = collector.New(s.market, sinks, nil /* opts */)
	s.scheduler = scheduler.New(s.collector, &scheduler.Options{
		Interval:        cfg.PollInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	return s, nil
}

// Close releases all resources. Background collection, if any, is stopped
// first.
func (s *Server) Close() error {
	s.cg.Close()

	var errs []error
	if s.collector != nil {
		errs = append(errs, s.collector.Close())
	}
	if s.pg != nil {
		errs = append(errs, s.pg.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.influx != nil {
		errs = append(errs, s.influx.Close())
	}
	errs = append(errs, s.client.Close())
	return errors.Join(errs...)
}

// Start verifies the api credentials, waits for the sinks to become ready
// and starts collecting the candles periodically in the background.
func (s *Server) Start(ctx context.Context) error {
	if err := s.CheckCredentials(ctx); err != nil {
		return err
	}
	if err := s.waitForSinks(ctx); err != nil {
		return err
	}

	s.cg.Go(func(ctx context.Context) {
		if err := s.scheduler.Run(ctx); err != nil && !errors.Is(err, os.ErrClosed) {
			slog.Error("candle collection has stopped unexpectedly", "err", err)
		}
	})
	slog.Info("started candle collection", "interval", s.cfg.PollInterval)
	return nil
}

// Stop stops the background collection. An in-flight cycle is given up to
// the shutdown timeout to finish.
func (s *Server) Stop(ctx context.Context) error {
	s.cg.Close()
	return nil
}

// CheckCredentials verifies that the api key is valid and has view
// permission.
func (s *Server) CheckCredentials(ctx context.Context) error {
	perms, err := dispatch.Call(ctx, s.exec, ratelimit.Private, s.client.GetKeyPermissions)
	if err != nil {
		return fmt.Errorf("could not validate api credentials: %w", err)
	}
	if !perms.CanView {
		return fmt.Errorf("api key has no view permission: %w", os.ErrPermission)
	}
	slog.Info("api credentials are valid", "portfolio", perms.PortfolioUUID, "can_trade", perms.CanTrade)
	return nil
}

func (s *Server) waitForSinks(ctx context.Context) error {
	if s.pg != nil {
		ready := func() error {
			if err := s.pg.Ping(ctx); err != nil {
				slog.Warn("postgres sink is not ready (will retry)", "err", err)
				return err
			}
			return nil
		}
		if err := ctxutil.RetryTimeout(ctx, s.opts.SinkRetryInterval, s.cfg.SinkReadyTimeout, ready); err != nil {
			return fmt.Errorf("postgres sink is not ready: %w", err)
		}
		if err := s.pg.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if s.redis != nil {
		ready := func() error {
			if err := s.redis.Ping(ctx); err != nil {
				slog.Warn("redis sink is not ready (will retry)", "err", err)
				return err
			}
			return nil
		}
		if err := ctxutil.RetryTimeout(ctx, s.opts.SinkRetryInterval, s.cfg.SinkReadyTimeout, ready); err != nil {
			return fmt.Errorf("redis sink is not ready: %w", err)
		}
	}
	if s.influx != nil {
		ready := func() error {
			if err := s.influx.Ping(ctx); err != nil {
				slog.Warn("influxdb sink is not ready (will retry)", "err", err)
				return err
			}
			return nil
		}
		if err := ctxutil.RetryTimeout(ctx, s.opts.SinkRetryInterval, s.cfg.SinkReadyTimeout, ready); err != nil {
			return fmt.Errorf("influxdb sink is not ready: %w", err)
		}
	}
	return nil
}

// RunCycle runs a single collection cycle in the foreground.
func (s *Server) RunCycle(ctx context.Context) (*collector.CycleResult, error) {
	if err := s.waitForSinks(ctx); err != nil {
		return nil, err
	}
	return s.collector.RunCycle(ctx), nil
}

// Products returns all products from the exchange catalog.
func (s *Server) Products(ctx context.Context) ([]*exchange.Product, error) {
	return s.market.Products(ctx)
}

func (s *Server) Collector() *collector.Collector {
	return s.collector
}

func (s *Server) Datastore() *datastore.Datastore {
	return s.datastore
}
