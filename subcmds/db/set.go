// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/candlebot/subcmds/cmdutil"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"
)

type Set struct {
	cmdutil.DBFlags

	valueType string
}

func (c *Set) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.valueType, "value-type", "", "gob type name for the json value (required)")
	return "set", fset, cli.CmdFunc(c.run)
}

func (c *Set) Purpose() string {
	return "Updates the value for a key in the database"
}

func (c *Set) run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("needs two (key, json-value) arguments")
	}
	if len(c.valueType) == 0 {
		return fmt.Errorf("value-type flag is required")
	}
	buf, err := encodeValue(c.valueType, args[1])
	if err != nil {
		return err
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	set := func(ctx context.Context, rw kv.ReadWriter) error {
		return rw.Set(ctx, args[0], buf)
	}
	return kv.WithReadWriter(ctx, db, set)
}
