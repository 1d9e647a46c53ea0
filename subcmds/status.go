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

type Status struct {
	cmdutil.ClientFlags
}

func (c *Status) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.ClientFlags.SetFlags(fset)
	return "status", fset, cli.CmdFunc(c.run)
}

func (c *Status) Purpose() string {
	return "Prints the status of a running service"
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	resp, err := cmdutil.Post[api.StatusResponse](ctx, &c.ClientFlags, api.StatusPath, &api.StatusRequest{})
	if err != nil {
		return err
	}
	if len(resp.Error) != 0 {
		return errors.New(resp.Error)
	}

	fmt.Printf("Uptime: %s\n", time.Since(resp.StartTime).Round(time.Second))
	fmt.Printf("Num Cycles: %d\n", resp.NumCycles)
	fmt.Printf("Num Requests: %d\n", resp.NumRequests)
	fmt.Printf("Num Throttled: %d\n", resp.NumThrottled)

	fmt.Println()
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Limiter\tMaxRPS\tAdmitted\tWaited\tInWindow\t\n")
	for _, l := range resp.Limiters {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t\n", l.Name, l.MaxRPS, l.Admitted, l.Waited, l.InWindow)
	}
	tw.Flush()

	last := resp.LastCycle
	if last == nil {
		fmt.Println()
		fmt.Println("No collection cycle has finished yet.")
		return nil
	}

	fmt.Println()
	fmt.Printf("Last Cycle: %s\n", last.ID)
	fmt.Printf("Finished: %s (%s ago)\n", last.EndTime.Format(time.RFC3339), time.Since(last.EndTime).Round(time.Second))
	fmt.Printf("Duration: %s\n", last.EndTime.Sub(last.StartTime).Round(time.Millisecond))
	fmt.Printf("Products: %d (%d succeeded, %d failed)\n", last.NumProducts, last.NumSucceeded, last.NumFailed)
	fmt.Printf("Candles: %d\n", last.NumCandles)

	if len(last.Failures) > 0 {
		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
		fmt.Fprintf(tw, "ProductID\tError\t\n")
		for _, f := range last.Failures {
			fmt.Fprintf(tw, "%s\t%s\t\n", f.ProductID, f.Error)
		}
		tw.Flush()
	}
	return nil
}
