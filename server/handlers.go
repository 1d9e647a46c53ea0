// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/bvk/candlebot/api"
	"github.com/bvk/candlebot/exchange"
	"github.com/bvk/candlebot/gobs"
	"github.com/bvk/candlebot/ratelimit"
)

// HandlerMap returns the http handlers for the service api.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.StatusPath:  httpJSONHandler(s.doStatus),
		api.CandlesPath: httpJSONHandler(s.doCandles),
		api.LatestPath:  httpJSONHandler(s.doLatest),
	}
}

// httpJSONHandler adapts a request handler function to http. Requests are
// json-decoded from POST bodies; GET requests use the zero request value.
func httpJSONHandler[T1 any, T2 any](fun func(context.Context, *T1) (*T2, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := new(T1)
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp, err := fun(r.Context(), req)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, os.ErrInvalid) {
				code = http.StatusBadRequest
			}
			http.Error(w, err.Error(), code)
			return
		}

		w.Header().Set("content-type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("could not encode http response", "path", r.URL.Path, "err", err)
		}
	})
}

func (s *Server) doStatus(ctx context.Context, req *api.StatusRequest) (*api.StatusResponse, error) {
	resp := &api.StatusResponse{
		StartTime:    s.startTime,
		NumCycles:    s.scheduler.Cycles(),
		NumRequests:  s.exec.Calls(),
		NumThrottled: s.exec.Throttled(),
	}
	for _, l := range []*ratelimit.Limiter{s.public, s.private} {
		stats := l.Stats()
		resp.Limiters = append(resp.Limiters, &api.LimiterStatus{
			Name:     l.Name(),
			MaxRPS:   l.MaxRPS(),
			Admitted: stats.Admitted,
			Waited:   stats.Waited,
			InWindow: stats.InWindow,
		})
	}

	if last := s.collector.Last(); last != nil {
		cs := &api.CycleStatus{
			ID:           last.ID.String(),
			StartTime:    last.StartTime,
			EndTime:      last.EndTime,
			NumProducts:  last.NumProducts,
			NumSucceeded: last.NumSucceeded(),
			NumFailed:    last.NumFailed(),
			NumCandles:   last.NumCandles(),
		}
		for _, out := range last.Outcomes {
			if !out.Succeeded() {
				cs.Failures = append(cs.Failures, &api.ProductOutcome{ProductID: out.ProductID, NumCandles: out.NumCandles, Error: out.Err})
			}
		}
		resp.LastCycle = cs
	}
	return resp, nil
}

func (s *Server) doCandles(ctx context.Context, req *api.CandlesRequest) (*api.CandlesResponse, error) {
	if err := req.Check(); err != nil {
		return nil, err
	}
	resp := &api.CandlesResponse{Candles: []*gobs.Candle{}}
	collect := func(c *exchange.Candle) error {
		resp.Candles = append(resp.Candles, toGob(c))
		return nil
	}
	if err := s.datastore.ScanCandles(ctx, req.ProductID, req.Range(), collect); err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Server) doLatest(ctx context.Context, req *api.LatestRequest) (*api.LatestResponse, error) {
	if err := req.Check(); err != nil {
		return nil, err
	}

	var errs []error
	resp := new(api.LatestResponse)
	if c, err := s.datastore.LastCandle(ctx, req.ProductID); err == nil {
		resp.Stored = toGob(c)
	} else if !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if s.pg != nil {
		if start, err := s.pg.LatestStart(ctx, req.ProductID); err == nil {
			resp.PostgresStart = &start
		} else {
			errs = append(errs, err)
		}
	}
	if s.redis != nil && req.NumCached > 0 {
		if candles, err := s.redis.LatestCandles(ctx, req.ProductID, req.NumCached); err == nil {
			for _, c := range candles {
				resp.Cached = append(resp.Cached, toGob(c))
			}
		} else {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		resp.Error = err.Error()
	}
	return resp, nil
}

func toGob(c *exchange.Candle) *gobs.Candle {
	return &gobs.Candle{
		Start:  c.Start,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}
}
