// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bvk/candlebot/server"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/visvasity/cli"
)

type Products struct {
	ConfigFlags

	all bool
}

func (c *Products) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("products", flag.ContinueOnError)
	c.ConfigFlags.SetFlags(fset)
	fset.BoolVar(&c.all, "all", false, "when true, offline products are also printed")
	return "products", fset, cli.CmdFunc(c.run)
}

func (c *Products) Purpose() string {
	return "Prints the products from the exchange catalog"
}

func (c *Products) run(ctx context.Context, args []string) error {
	cfg, err := c.ConfigFlags.Config()
	if err != nil {
		return err
	}
	svc, err := server.New(ctx, cfg, kvmemdb.New(), nil /* opts */)
	if err != nil {
		return err
	}
	defer svc.Close()

	products, err := svc.Products(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintf(tw, "ProductID\tBase\tQuote\tStatus\tPrice\t\n")
	for _, p := range products {
		if !c.all && !p.IsOnline() {
			continue
		}
		price := "-"
		if p.Price != nil {
			price = *p.Price
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", p.ProductID, p.BaseName, p.QuoteName, p.RawStatus, price)
	}
	tw.Flush()
	return nil
}
