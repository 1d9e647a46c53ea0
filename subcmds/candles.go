// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bvk/candlebot/api"
	"github.com/bvk/candlebot/datastore"
	"github.com/bvk/candlebot/exchange"
	"github.com/bvk/candlebot/gobs"
	"github.com/bvk/candlebot/subcmds/cmdutil"
	"github.com/bvk/candlebot/timerange"
	"github.com/visvasity/cli"
)

type Candles struct {
	cmdutil.DBFlags

	period string

	beginTime, endTime string
}

func (c *Candles) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("candles", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.period, "period", "", fmt.Sprintf("calendar period in local time; one of %s", strings.Join(timerange.PeriodNames(), ", ")))
	fset.StringVar(&c.beginTime, "begin-time", "", "begin time as a duration relative to now, a date or a RFC3339 timestamp")
	fset.StringVar(&c.endTime, "end-time", "", "end time as a duration relative to now, a date or a RFC3339 timestamp")
	return "candles", fset, cli.CmdFunc(c.run)
}

func (c *Candles) Purpose() string {
	return "Prints the saved candles of a product"
}

func parseTime(now time.Time, s string) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}
	if v, err := time.Parse("2006-01-02", s); err == nil {
		return v, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (c *Candles) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("command takes one (product-id) argument")
	}

	now := time.Now()
	req := &api.CandlesRequest{ProductID: args[0]}
	if len(c.period) > 0 {
		r, err := timerange.Period(c.period, now)
		if err != nil {
			return err
		}
		req.StartTime, req.EndTime = r.Begin, r.End
	}
	if len(c.beginTime) > 0 {
		v, err := parseTime(now, c.beginTime)
		if err != nil {
			return fmt.Errorf("could not parse begin-time %q: %w", c.beginTime, err)
		}
		req.StartTime = v
	}
	if len(c.endTime) > 0 {
		v, err := parseTime(now, c.endTime)
		if err != nil {
			return fmt.Errorf("could not parse end-time %q: %w", c.endTime, err)
		}
		req.EndTime = v
	}
	if err := req.Check(); err != nil {
		return err
	}

	candles, err := c.getCandles(ctx, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Start\tOpen\tHigh\tLow\tClose\tVolume\t\n")
	for _, v := range candles {
		start := time.Unix(v.Start, 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n", start, v.Open, v.High, v.Low, v.Close, v.Volume)
	}
	tw.Flush()
	return nil
}

// getCandles fetches the candles from the api of a running service or reads
// them directly from a local database.
func (c *Candles) getCandles(ctx context.Context, req *api.CandlesRequest) ([]*gobs.Candle, error) {
	if c.DBFlags.IsRemoteDatabase() {
		resp, err := cmdutil.Post[api.CandlesResponse](ctx, &c.DBFlags.ClientFlags, api.CandlesPath, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Error) != 0 {
			return nil, errors.New(resp.Error)
		}
		return resp.Candles, nil
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return nil, err
	}
	defer closer()

	var candles []*gobs.Candle
	collect := func(v *exchange.Candle) error {
		candles = append(candles, &gobs.Candle{
			Start:  v.Start,
			Open:   v.Open,
			High:   v.High,
			Low:    v.Low,
			Close:  v.Close,
			Volume: v.Volume,
		})
		return nil
	}
	if err := datastore.New(db).ScanCandles(ctx, req.ProductID, req.Range(), collect); err != nil {
		return nil, err
	}
	return candles, nil
}
