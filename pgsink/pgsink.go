// Copyright (c) 2023 BVK Chaitanya

// Package pgsink implements a candle sink for Postgres and TimescaleDB.
package pgsink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bvk/candlebot/exchange"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DefaultTable = "candles"

type Options struct {
	// Table is the name of the candles table.
	Table string

	// MaxConns is the maximum size of the connection pool.
	MaxConns int32
}

func (v *Options) setDefaults() {
	if v.Table == "" {
		v.Table = DefaultTable
	}
	if v.MaxConns == 0 {
		v.MaxConns = 8
	}
}

type Sink struct {
	opts Options

	pool *pgxpool.Pool

	insertSQL string
}

// New creates a connection pool to the database. Connections are established
// lazily, so New doesn't fail when the database is unreachable.
func New(ctx context.Context, connString string, opts *Options) (*Sink, error) {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("could not parse postgres connection string: %w", err)
	}
	poolCfg.MaxConns = v.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("could not create postgres connection pool: %w", err)
	}

	s := &Sink{
		opts: v,
		pool: pool,
		insertSQL: fmt.Sprintf(`
			INSERT INTO %s (product_id, start_time, open, high, low, close, volume, updated_at)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8)
			ON CONFLICT (product_id, start_time) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
				close = EXCLUDED.close, volume = EXCLUDED.volume, updated_at = EXCLUDED.updated_at
		`, pgx.Identifier{v.Table}.Sanitize()),
	}
	return s, nil
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies that the database is reachable.
func (s *Sink) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("could not ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the candles table if it doesn't exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			product_id TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			open NUMERIC NOT NULL,
			high NUMERIC NOT NULL,
			low NUMERIC NOT NULL,
			close NUMERIC NOT NULL,
			volume NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (product_id, start_time)
		)`, pgx.Identifier{s.opts.Table}.Sanitize())
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("could not create table %q: %w", s.opts.Table, err)
	}
	return nil
}

// WriteCandles upserts the candles in a single batch.
func (s *Sink) WriteCandles(ctx context.Context, productID string, candles []*exchange.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(s.insertSQL, productID, c.Time(), c.Open, c.High, c.Low, c.Close, c.Volume, now)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, c := range candles {
		if _, err := results.Exec(); err != nil {
			slog.Error("could not upsert candle", "product", productID, "start", c.Time(), "err", err)
			return fmt.Errorf("could not upsert candle %d of %q: %w", c.Start, productID, err)
		}
	}
	return nil
}

// LatestStart returns the start time of the most recent candle saved for the
// product. Returns zero time if there are no candles for the product.
func (s *Sink) LatestStart(ctx context.Context, productID string) (time.Time, error) {
	query := fmt.Sprintf(`SELECT max(start_time) FROM %s WHERE product_id = $1`, pgx.Identifier{s.opts.Table}.Sanitize())

	var start *time.Time
	if err := s.pool.QueryRow(ctx, query, productID).Scan(&start); err != nil {
		return time.Time{}, fmt.Errorf("could not query latest candle of %q: %w", productID, err)
	}
	if start == nil {
		return time.Time{}, nil
	}
	return start.UTC(), nil
}
