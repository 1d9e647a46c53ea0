// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bvk/candlebot/api"
	"github.com/bvk/candlebot/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Latest struct {
	cmdutil.ClientFlags

	numCached int64
}

func (c *Latest) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("latest", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	fset.Int64Var(&c.numCached, "num-cached", 3, "number of recent candles to print from the redis cache")
	return "latest", fset, cli.CmdFunc(c.run)
}

func (c *Latest) Purpose() string {
	return "Prints the most recent candles saved by each sink of a running service"
}

func (c *Latest) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("command takes one product-id argument")
	}

	req := &api.LatestRequest{ProductID: args[0], NumCached: c.numCached}
	resp, err := cmdutil.Post[api.LatestResponse](ctx, &c.ClientFlags, api.LatestPath, req)
	if err != nil {
		return err
	}

	if resp.Stored == nil {
		fmt.Println("Database: no candles")
	} else {
		fmt.Printf("Database: %s\n", time.Unix(resp.Stored.Start, 0).UTC().Format(time.RFC3339))
	}
	if resp.PostgresStart != nil {
		if resp.PostgresStart.IsZero() {
			fmt.Println("Postgres: no candles")
		} else {
			fmt.Printf("Postgres: %s\n", resp.PostgresStart.Format(time.RFC3339))
		}
	}
	if len(resp.Cached) > 0 {
		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "Start\tOpen\tHigh\tLow\tClose\tVolume\t\n")
		for _, v := range resp.Cached {
			start := time.Unix(v.Start, 0).UTC().Format(time.RFC3339)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n", start, v.Open, v.High, v.Low, v.Close, v.Volume)
		}
		tw.Flush()
	}

	if len(resp.Error) != 0 {
		return errors.New(resp.Error)
	}
	return nil
}
