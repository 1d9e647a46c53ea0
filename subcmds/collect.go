// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/bvk/candlebot/server"
	"github.com/bvk/candlebot/subcmds/cmdutil"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/bvkgo/kvbadger"
	"github.com/visvasity/cli"
)

type Collect struct {
	ConfigFlags

	dryRun bool
}

func (c *Collect) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("collect", flag.ContinueOnError)
	c.ConfigFlags.SetFlags(fset)
	fset.BoolVar(&c.dryRun, "dry-run", false, "when true, candles are saved in an in-memory database only")
	return "collect", fset, cli.CmdFunc(c.run)
}

func (c *Collect) Purpose() string {
	return "Runs a single collection cycle in the foreground"
}

func (c *Collect) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments")
	}

	cfg, err := c.ConfigFlags.Config()
	if err != nil {
		return err
	}

	var db kv.Database = kvmemdb.New()
	if !c.dryRun {
		bdb, err := cmdutil.OpenBadger(filepath.Join(cfg.DataDir, "db"))
		if err != nil {
			return fmt.Errorf("could not open database (is the service running?): %w", err)
		}
		defer bdb.Close()
		db = kvbadger.New(bdb, cmdutil.IsGoodKey)
	}

	svc, err := server.New(ctx, cfg, db, nil /* opts */)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.CheckCredentials(ctx); err != nil {
		return err
	}
	result, err := svc.RunCycle(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "ProductID\tCandles\tError\t\n")
	for _, out := range result.Outcomes {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", out.ProductID, out.NumCandles, out.Err)
	}
	tw.Flush()

	fmt.Println()
	fmt.Printf("Cycle: %s\n", result.ID)
	fmt.Printf("Duration: %s\n", result.Duration().Round(time.Millisecond))
	fmt.Printf("Products: %d (%d succeeded, %d failed)\n", result.NumProducts, result.NumSucceeded(), result.NumFailed())
	fmt.Printf("Candles: %d\n", result.NumCandles())
	return nil
}
